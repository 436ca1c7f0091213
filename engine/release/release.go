// Package release drives a set of workflows' cron schedules: it ticks at
// one-minute granularity, deduplicates (workflow, logical_date) fires,
// and invokes the Workflow Driver's release path on one goroutine per
// fired release, each bounded by a per-release timeout; the number of
// concurrently running releases is not capped.
package release

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/event"
	"github.com/flowforge/flowforge/engine/workflow"
)

// DefaultReleaseTimeout bounds one Driver.Release invocation.
const DefaultReleaseTimeout = 10 * time.Minute

// ResultFunc observes the outcome of one fired release; the scheduler
// itself has no opinion on logging/audit, so hosts hook in here.
type ResultFunc func(workflowName string, releaseTime time.Time, res workflow.Result, err error)

// Config bounds a Scheduler's behavior.
type Config struct {
	ReleaseTimeout time.Duration
	// RatePerMinute bounds how many releases a single workflow may fire
	// per minute; 0 disables rate limiting.
	RatePerMinute int64
	OnResult      ResultFunc
}

// Scheduler watches a fixed set of workflow Specs and fires Driver.Release
// for each as its declared cron schedules come due.
type Scheduler struct {
	driver *workflow.Driver
	specs  map[string]workflow.Spec
	names  []string // sorted by name, for deterministic iteration within a tick
	cfg    Config

	limiters map[string]*limiter.Limiter

	mu       sync.Mutex
	released map[string]struct{}
}

// New builds a Scheduler over specs, validating every declared Event at
// construction time (spec §4.8 "Validation at load time").
func New(driver *workflow.Driver, specs []workflow.Spec, cfg Config) (*Scheduler, error) {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = DefaultReleaseTimeout
	}
	s := &Scheduler{
		driver:   driver,
		specs:    make(map[string]workflow.Spec, len(specs)),
		names:    make([]string, 0, len(specs)),
		cfg:      cfg,
		limiters: make(map[string]*limiter.Limiter, len(specs)),
		released: make(map[string]struct{}),
	}
	for _, spec := range specs {
		if spec.Event == nil {
			continue
		}
		if _, err := spec.Event.Compile(); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", spec.Name, err)
		}
		s.specs[spec.Name] = spec
		s.names = append(s.names, spec.Name)
		if cfg.RatePerMinute > 0 {
			store := memory.NewStore()
			s.limiters[spec.Name] = limiter.New(store, limiter.Rate{Period: time.Minute, Limit: cfg.RatePerMinute})
		}
	}
	sort.Strings(s.names) // deterministic iteration; fire order within a tick still follows event declaration per workflow
	return s, nil
}

// Run blocks, ticking at one-minute granularity until tok fires.
func (s *Scheduler) Run(ctx context.Context, tok *core.CancelToken) {
	for {
		next := nextMinuteBoundary(time.Now())
		select {
		case <-time.After(time.Until(next)):
		case <-tok.Done():
			return
		}
		s.tick(ctx, tok, next)
	}
}

func nextMinuteBoundary(from time.Time) time.Time {
	return from.Truncate(time.Minute).Add(time.Minute)
}

func (s *Scheduler) tick(ctx context.Context, tok *core.CancelToken, at time.Time) {
	for _, name := range s.names {
		spec := s.specs[name]
		compiled, err := spec.Event.Compile()
		if err != nil {
			continue
		}
		if !s.fireThisMinute(compiled, at) {
			continue
		}
		if !s.shouldRelease(name, at) {
			continue
		}
		if lim, ok := s.limiters[name]; ok {
			ctxLimit, cancelErr := lim.Get(ctx, name)
			if cancelErr == nil && ctxLimit.Reached {
				continue
			}
		}
		go s.fire(ctx, tok, spec, at)
	}
}

// fireThisMinute reports whether any of compiled's schedules (checked in
// declaration order, the §9 Open Question #4 tie-break) fires at at.
func (s *Scheduler) fireThisMinute(compiled *event.Compiled, at time.Time) bool {
	for _, sched := range compiled.Schedules {
		candidate := sched.Next(at.Add(-time.Second))
		if candidate.Equal(at) {
			return true
		}
	}
	return false
}

// shouldRelease deduplicates on (workflow, logical_date): a release
// already fired in-process for this minute is not fired again.
func (s *Scheduler) shouldRelease(name string, at time.Time) bool {
	key := name + "\x00" + at.UTC().Format(time.RFC3339)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.released[key]; seen {
		return false
	}
	s.released[key] = struct{}{}
	return true
}

func (s *Scheduler) fire(ctx context.Context, tok *core.CancelToken, spec workflow.Spec, at time.Time) {
	releaseCtx, cancel := context.WithTimeout(ctx, s.cfg.ReleaseTimeout)
	defer cancel()
	res, err := s.driver.Release(releaseCtx, spec, at, workflow.ReleaseScheduled, nil)
	if s.cfg.OnResult != nil {
		s.cfg.OnResult(spec.Name, at, res, err)
	}
}
