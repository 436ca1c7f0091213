// Package scheduler runs a workflow's job DAG: topological ordering,
// trigger-rule gating, a bounded concurrent worker pool, and cooperative
// cancellation.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/goresilience"
	"github.com/slok/goresilience/concurrentlimit"
	"github.com/slok/goresilience/timeout"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/pkg/metrics"
)

// TriggerRule is the closed set of seven rules gating whether a job runs
// once its declared dependencies reach a terminal status.
type TriggerRule string

const (
	RuleAllSuccess  TriggerRule = "all_success"
	RuleAllFailed   TriggerRule = "all_failed"
	RuleAllDone     TriggerRule = "all_done"
	RuleOneSuccess  TriggerRule = "one_success"
	RuleOneFailed   TriggerRule = "one_failed"
	RuleNoneFailed  TriggerRule = "none_failed"
	RuleNoneSkipped TriggerRule = "none_skipped"
)

// Node is one job in the DAG: its dependencies, the rule gating it, and
// the function that actually executes the job and returns its status.
type Node struct {
	ID          string
	Needs       []string
	TriggerRule TriggerRule
	Run         func(ctx context.Context) core.Status
}

// Config bounds the scheduler's worker pool and per-job timeout.
type Config struct {
	MaxParallel int
	JobTimeout  time.Duration

	// Workflow labels job metrics with the owning workflow's name. Metrics
	// may be left nil; every recording call site tolerates it.
	Workflow string
	Metrics  *metrics.JobMetrics
}

// Scheduler runs one DAG to completion.
type Scheduler struct {
	cfg Config
}

// DefaultMaxParallel is the worker pool size used when Config.MaxParallel
// is left unset.
const DefaultMaxParallel = 2

// New builds a Scheduler. A non-positive MaxParallel defaults to
// DefaultMaxParallel; a non-positive JobTimeout leaves each job with a
// 24-hour deadline.
func New(cfg Config) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return &Scheduler{cfg: cfg}
}

// Validate checks nodes form a valid DAG: every Needs reference resolves
// to a declared node, and there is no cycle.
func Validate(nodes []Node) error {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return fmt.Errorf("duplicate job id %q", n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range nodes {
		for _, dep := range n.Needs {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("job %q needs undeclared job %q", n.ID, dep)
			}
		}
	}
	color := make(map[string]int, len(nodes)) // 0=white 1=gray 2=black
	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case 1:
			return fmt.Errorf("cycle detected at job %q", id)
		case 2:
			return nil
		}
		color[id] = 1
		for _, dep := range byID[id].Needs {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = 2
		return nil
	}
	for _, n := range nodes {
		if err := visit(n.ID); err != nil {
			return err
		}
	}
	return nil
}

// Run executes nodes to completion, honoring cancel, and returns each
// job's final status keyed by ID.
func Run(ctx context.Context, nodes []Node, cfg Config, cancel *core.CancelToken) (map[string]core.Status, error) {
	if err := Validate(nodes); err != nil {
		return nil, core.NewKindError(core.ErrKindWorkflow, fmt.Errorf("invalid job graph: %w", err))
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	runner := goresilience.RunnerChain(
		concurrentlimit.NewMiddleware(concurrentlimit.Config{MaxConcurrentExecutions: cfg.MaxParallel}),
		timeout.NewMiddleware(timeout.Config{Timeout: effectiveTimeout(cfg.JobTimeout)}),
	)

	byID := make(map[string]Node, len(nodes))
	dependents := make(map[string][]string)
	pending := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		pending[n.ID] = len(n.Needs)
		for _, dep := range n.Needs {
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var mu sync.Mutex
	done := make(map[string]core.Status, len(nodes))
	var wg sync.WaitGroup
	ready := make(chan string, len(nodes))

	var schedule func(id string)
	schedule = func(id string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status := runNode(ctx, runner, byID[id], upstreamStatuses(byID[id], done, &mu))
			cfg.Metrics.RecordJob(ctx, cfg.Workflow, id, string(status), time.Since(start))
			mu.Lock()
			done[id] = status
			next := dependents[id]
			mu.Unlock()
			for _, depID := range next {
				mu.Lock()
				pending[depID]--
				readyNow := pending[depID] == 0
				mu.Unlock()
				if readyNow {
					ready <- depID
				}
			}
		}()
	}

	for _, n := range nodes {
		if pending[n.ID] == 0 {
			ready <- n.ID
		}
	}

	remaining := len(nodes)
	for remaining > 0 {
		if cancel.Fired() {
			wg.Wait()
			return done, cancel.Cause()
		}
		select {
		case id := <-ready:
			schedule(id)
			remaining--
		case <-cancel.Done():
			wg.Wait()
			return done, cancel.Cause()
		}
	}
	wg.Wait()
	return done, nil
}

func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func upstreamStatuses(n Node, done map[string]core.Status, mu *sync.Mutex) []core.Status {
	mu.Lock()
	defer mu.Unlock()
	out := make([]core.Status, len(n.Needs))
	for i, dep := range n.Needs {
		out[i] = done[dep]
	}
	return out
}

func runNode(ctx context.Context, runner goresilience.Runner, n Node, upstream []core.Status) core.Status {
	if !satisfiesRule(n.TriggerRule, upstream) {
		return core.StatusSkip
	}
	var status core.Status
	_ = runner.Run(ctx, func(ctx context.Context) error {
		status = n.Run(ctx)
		return nil
	})
	if status == "" {
		return core.StatusFailed
	}
	return status
}

// satisfiesRule evaluates rule against the statuses of a job's declared
// dependencies. A job with no dependencies always proceeds, regardless of
// rule — in particular none_skipped trivially holds for zero upstreams.
func satisfiesRule(rule TriggerRule, upstream []core.Status) bool {
	if len(upstream) == 0 {
		return true
	}
	switch rule {
	case RuleAllSuccess:
		return allMatch(upstream, core.StatusSuccess)
	case RuleAllFailed:
		return allMatch(upstream, core.StatusFailed)
	case RuleAllDone:
		for _, s := range upstream {
			if !s.Terminal() {
				return false
			}
		}
		return true
	case RuleOneSuccess:
		return anyMatch(upstream, core.StatusSuccess)
	case RuleOneFailed:
		return anyMatch(upstream, core.StatusFailed)
	case RuleNoneFailed:
		return !anyMatch(upstream, core.StatusFailed)
	case RuleNoneSkipped:
		return !anyMatch(upstream, core.StatusSkip)
	default:
		return false
	}
}

func allMatch(statuses []core.Status, want core.Status) bool {
	for _, s := range statuses {
		if s != want {
			return false
		}
	}
	return true
}

func anyMatch(statuses []core.Status, want core.Status) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
