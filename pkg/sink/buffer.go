package sink

import (
	"context"
	"sync"

	"github.com/flowforge/flowforge/pkg/logger"
)

// DefaultBufferSize bounds how many pending events a BufferedTraceSink
// queues before it starts dropping the newest ones.
const DefaultBufferSize = 1024

// BufferedTraceSink decouples emitting a trace event from writing it:
// Trace enqueues and returns immediately, while a single background
// goroutine drains the queue into the wrapped sink. A full queue drops
// the event rather than blocking the caller, satisfying the "bounded
// buffer, no back-pressure" contract.
type BufferedTraceSink struct {
	next  TraceSink
	queue chan TraceEvent
	done  chan struct{}

	mu      sync.Mutex
	dropped uint64
}

// NewBufferedTraceSink wraps next with a queue of size capacity
// (DefaultBufferSize if capacity <= 0) and starts its drain loop.
func NewBufferedTraceSink(ctx context.Context, next TraceSink, capacity int) *BufferedTraceSink {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	b := &BufferedTraceSink{
		next:  next,
		queue: make(chan TraceEvent, capacity),
		done:  make(chan struct{}),
	}
	go b.drain(ctx)
	return b
}

// Trace enqueues event without blocking; if the queue is full, the event
// is dropped and counted rather than applying back-pressure to the
// caller.
func (b *BufferedTraceSink) Trace(_ context.Context, event TraceEvent) error {
	select {
	case b.queue <- event:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
	}
	return nil
}

// Dropped returns how many events have been discarded due to a full
// queue so far.
func (b *BufferedTraceSink) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Wait blocks until the drain loop has exited — call after canceling
// the context passed to NewBufferedTraceSink to know every already
// enqueued event has either been written or the loop has stopped.
func (b *BufferedTraceSink) Wait() {
	<-b.done
}

func (b *BufferedTraceSink) drain(ctx context.Context) {
	defer close(b.done)
	log := logger.FromContext(ctx)
	for {
		select {
		case event := <-b.queue:
			if err := b.next.Trace(ctx, event); err != nil {
				log.Warn("trace sink write failed", "error", err, "workflow", event.Workflow)
			}
		case <-ctx.Done():
			return
		}
	}
}
