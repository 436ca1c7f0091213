// Package sink defines the narrow interfaces the engine emits trace and
// audit events against, plus a bounded async buffer so a slow or stuck
// sink can never block the run it is observing.
package sink

import (
	"context"
	"time"

	"github.com/flowforge/flowforge/engine/core"
)

// TraceEvent is one structured log line a stage or job emits during a
// run.
type TraceEvent struct {
	// CutID identifies this one event, distinct from RunID which identifies
	// the whole release every event in it shares.
	CutID       string
	RunID       core.RunID
	ParentRunID core.ParentRunID
	Level       string
	Message     string
	Timestamp   time.Time
	Workflow    string
	Job         string
	Stage       string
	DurationMs  int64
	Exception   string
}

// AuditRecord is written once per release, regardless of outcome.
type AuditRecord struct {
	Name        string
	Type        string
	Release     time.Time
	Context     map[string]any
	RunID       core.RunID
	ParentRunID core.ParentRunID
	UpdatedAt   time.Time
}

// TraceSink receives TraceEvents. Implementations must be safe for
// concurrent use — the engine emits from every running stage goroutine.
type TraceSink interface {
	Trace(ctx context.Context, event TraceEvent) error
}

// AuditSink receives AuditRecords, one per release.
type AuditSink interface {
	Audit(ctx context.Context, record AuditRecord) error
}

// NopTraceSink discards every event; it is the default when tracing is
// disabled, so call sites never need a nil check.
type NopTraceSink struct{}

func (NopTraceSink) Trace(context.Context, TraceEvent) error { return nil }

// NopAuditSink discards every record; the default when auditing is
// disabled.
type NopAuditSink struct{}

func (NopAuditSink) Audit(context.Context, AuditRecord) error { return nil }
