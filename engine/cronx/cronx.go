// Package cronx wraps robfig/cron/v3's schedule parser with the
// timezone-aware next/previous fire-time queries the release scheduler
// needs.
package cronx

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowforge/flowforge/engine/core"
)

// parser accepts the standard five-field cron grammar plus the common
// "@every"/"@daily" descriptors, matching the teacher's release-scheduling
// convention of accepting whatever an operator is used to writing.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a parsed cron expression bound to an IANA timezone.
type Schedule struct {
	expr cron.Schedule
	loc  *time.Location
	raw  string
}

// Parse compiles a cron expression against the given IANA timezone name.
func Parse(expr, timezone string) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, core.NewKindError(core.ErrKindSchedule, fmt.Errorf("invalid timezone %q: %w", timezone, err))
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, core.NewKindError(core.ErrKindSchedule, fmt.Errorf("invalid cron expression %q: %w", expr, err))
	}
	return &Schedule{expr: sched, loc: loc, raw: expr}, nil
}

// String returns the original cron expression text.
func (s *Schedule) String() string { return s.raw }

// Timezone returns the schedule's bound IANA location.
func (s *Schedule) Timezone() *time.Location { return s.loc }

// Next computes the first fire time strictly after from, evaluated in the
// schedule's timezone. DST transitions are handled by robfig/cron's
// wall-clock arithmetic, which cronx inherits unmodified.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.expr.Next(from.In(s.loc))
}

// Prev computes the last fire time at or before from; robfig/cron only
// exposes a forward Next, so prior fire time is derived by walking Next
// forward from one year before from and keeping the last fire time that
// does not pass it. It reports false when no fire time falls in that year.
func (s *Schedule) Prev(from time.Time) (time.Time, bool) {
	at := from.In(s.loc)
	cursor := at.AddDate(-1, 0, 0)
	var last time.Time
	found := false
	for {
		next := s.expr.Next(cursor)
		if next.IsZero() || next.After(at) {
			break
		}
		last = next
		found = true
		cursor = next
	}
	return last, found
}
