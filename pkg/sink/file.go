package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

const osAppendFlags = os.O_APPEND | os.O_WRONLY | os.O_CREATE

// FileTraceSink appends one JSON line per TraceEvent to a file, guarded
// by an advisory lock so multiple flowforge processes sharing a trace
// file don't interleave partial writes.
type FileTraceSink struct {
	fs   afero.Fs
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewFileTraceSink opens (creating if needed) the JSON-lines file at
// path on fs. Pass afero.NewOsFs() in production; tests may pass an
// afero.NewMemMapFs().
func NewFileTraceSink(fs afero.Fs, path string) (*FileTraceSink, error) {
	if err := ensureFile(fs, path); err != nil {
		return nil, err
	}
	return &FileTraceSink{fs: fs, path: path, lock: fileLockFor(fs, path)}, nil
}

// Trace appends event as one JSON line.
func (s *FileTraceSink) Trace(_ context.Context, event TraceEvent) error {
	return s.appendLine(event)
}

// FileAuditSink appends one JSON line per AuditRecord to a file, the
// same way FileTraceSink does for trace events.
type FileAuditSink struct {
	fs   afero.Fs
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewFileAuditSink opens (creating if needed) the JSON-lines file at
// path on fs.
func NewFileAuditSink(fs afero.Fs, path string) (*FileAuditSink, error) {
	if err := ensureFile(fs, path); err != nil {
		return nil, err
	}
	return &FileAuditSink{fs: fs, path: path, lock: fileLockFor(fs, path)}, nil
}

// Audit appends record as one JSON line.
func (s *FileAuditSink) Audit(_ context.Context, record AuditRecord) error {
	return s.appendLine(record)
}

func lockPath(path string) string { return path + ".lock" }

// fileLockFor returns an advisory lock for path, or nil when fs isn't
// backed by the real filesystem (e.g. a MemMapFs in tests) — flock locks
// real inodes, so it has nothing to guard against an in-memory fs and
// would otherwise reach past it onto the host disk.
func fileLockFor(fs afero.Fs, path string) *flock.Flock {
	if _, ok := fs.(*afero.OsFs); !ok {
		return nil
	}
	return flock.New(lockPath(path))
}

func ensureFile(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("sink: checking %q: %w", path, err)
	}
	if exists {
		return nil
	}
	return afero.WriteFile(fs, path, []byte{}, 0o644)
}

func (s *FileTraceSink) appendLine(v any) error {
	return appendJSONLine(&s.mu, s.lock, s.fs, s.path, v)
}

func (s *FileAuditSink) appendLine(v any) error {
	return appendJSONLine(&s.mu, s.lock, s.fs, s.path, v)
}

// appendJSONLine serializes v and appends it, guarded first by an
// in-process mutex (cheap, avoids contending the advisory lock against
// our own goroutines) and then by the cross-process advisory file lock.
func appendJSONLine(mu *sync.Mutex, lock *flock.Flock, fs afero.Fs, path string, v any) error {
	mu.Lock()
	defer mu.Unlock()

	if lock != nil {
		if err := lock.Lock(); err != nil {
			return fmt.Errorf("sink: locking %q: %w", path, err)
		}
		defer lock.Unlock()
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sink: encoding record: %w", err)
	}
	b = append(b, '\n')

	f, err := fs.OpenFile(path, osAppendFlags, 0o644)
	if err != nil {
		return fmt.Errorf("sink: opening %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("sink: writing %q: %w", path, err)
	}
	return nil
}
