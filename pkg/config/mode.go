package config

import "strings"

// Mode selects how a flowforge process runs: a single-process standalone
// node, or one node in a cluster sharing release-scheduling duties.
type Mode string

const (
	ModeStandalone Mode = "standalone"
	ModeCluster    Mode = "cluster"
)

// normalizeMode trims whitespace and lowercases raw before it is compared
// against the known Mode values, so "  StandAlone  " resolves the same as
// "standalone".
func normalizeMode(raw string) Mode {
	return Mode(strings.ToLower(strings.TrimSpace(raw)))
}

