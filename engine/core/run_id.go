package core

import (
	"fmt"

	"github.com/segmentio/ksuid"
)

// RunID names one release (workflow invocation) for its lifetime. It is
// process-unique and carries a timestamp prefix (from the ksuid it is
// built on, which records time to the second) plus a content-hash suffix.
// Two releases started within the same second are told apart by the
// ksuid's random payload; the suffix alone differs only when the workflow
// or seed differs.
type RunID string

// ParentRunID optionally links a child (triggered) run to its parent.
type ParentRunID string

func (id RunID) String() string { return string(id) }
func (id RunID) IsZero() bool   { return id == "" }

func (id ParentRunID) String() string { return string(id) }
func (id ParentRunID) IsZero() bool   { return id == "" }

// NewRunID mints a RunID for workflowID starting release with the given
// seed (typically the coerced params, or the release's logical date for
// cron-driven releases). The ksuid component supplies uniqueness and
// second-granularity time ordering; the hash suffix is the first 12 hex
// characters of a hash of workflowID and seed, so two runs of the same
// workflow with the same seed share the same suffix.
func NewRunID(workflowID string, seed any) (RunID, error) {
	k, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to mint run id: %w", err)
	}
	suffix := ETagFromAny(map[string]any{"workflow": workflowID, "seed": seed})
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	return RunID(k.String() + "." + suffix), nil
}
