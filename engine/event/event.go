// Package event declares a workflow's trigger surface: an ordered set of
// cron schedules and the names of other workflows whose completion should
// release this one.
package event

import (
	"fmt"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/cronx"
)

// maxSchedules bounds the number of cron schedules a single event block
// may declare.
const maxSchedules = 10

// ScheduleDecl is one declared cron schedule, kept in declaration order so
// that same-minute collisions resolve deterministically.
type ScheduleDecl struct {
	Cron     string
	Timezone string
}

// Spec is a workflow's full trigger declaration.
type Spec struct {
	Schedules  []ScheduleDecl
	ReleaseOn  []string
}

// Compiled is a validated Spec with its cron schedules parsed.
type Compiled struct {
	Schedules []*cronx.Schedule
	ReleaseOn []string
}

// Compile validates s and parses its cron schedules, failing with an
// ErrKindSchedule error on any violation:
//   - more than maxSchedules cron entries,
//   - an unparseable cron expression or timezone,
//   - schedules declaring inconsistent timezones (the event block shares
//     a single timezone across all its entries).
func (s Spec) Compile() (*Compiled, error) {
	if len(s.Schedules) > maxSchedules {
		return nil, core.NewKindError(core.ErrKindSchedule,
			fmt.Errorf("event declares %d schedules, exceeding the maximum of %d", len(s.Schedules), maxSchedules))
	}
	out := &Compiled{Schedules: make([]*cronx.Schedule, 0, len(s.Schedules)), ReleaseOn: s.ReleaseOn}
	var tz string
	for i, decl := range s.Schedules {
		if decl.Timezone == "" {
			return nil, core.NewKindError(core.ErrKindSchedule, fmt.Errorf("schedule %d: timezone is required", i))
		}
		if tz == "" {
			tz = decl.Timezone
		} else if tz != decl.Timezone {
			return nil, core.NewKindError(core.ErrKindSchedule,
				fmt.Errorf("schedule %d: timezone %q does not match the event's shared timezone %q", i, decl.Timezone, tz))
		}
		sched, err := cronx.Parse(decl.Cron, decl.Timezone)
		if err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, sched)
	}
	return out, nil
}
