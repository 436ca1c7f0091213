package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/knadh/koanf/v2"

	"github.com/flowforge/flowforge/engine/core"
)

// OnChangeFunc observes a successfully (re)loaded Config.
type OnChangeFunc func(*Config)

// Manager owns the current Config and notifies subscribers whenever a
// reload replaces it — the load path a hot-reloading host uses to react
// to a changed config file.
type Manager struct {
	svc *Service

	mu       sync.RWMutex
	cfg      *Config
	sources  []Source
	onChange []OnChangeFunc
}

// NewManager builds a Manager backed by svc, defaulting to NewService()
// when svc is nil.
func NewManager(svc *Service) *Manager {
	if svc == nil {
		svc = NewService()
	}
	return &Manager{svc: svc}
}

// Load composes sources in order — later sources override earlier keys —
// validates the result, stores it, remembers sources for Reload, and
// fires every OnChange subscriber.
func (m *Manager) Load(_ context.Context, sources ...Source) (*Config, error) {
	k := koanf.New(".")
	for _, src := range sources {
		if err := k.Load(src.Provider(), src.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", src.Name(), err)
		}
	}
	cfg := &Config{
		Mode:            normalizeMode(k.String("mode")),
		Timezone:        k.String("timezone"),
		MaxParallelJobs: k.Int("max_parallel_jobs"),
		RegistryPaths:   k.Strings("registry_paths"),
		Trace: SinkConfig{
			Enabled: k.Bool("trace.enabled"),
			URL:     k.String("trace.url"),
		},
		Audit: SinkConfig{
			Enabled: k.Bool("audit.enabled"),
			URL:     k.String("audit.url"),
		},
	}
	timeout, err := core.ParseHumanDuration(k.String("workflow_timeout"))
	if err != nil {
		return nil, fmt.Errorf("config: parsing workflow_timeout: %w", err)
	}
	cfg.WorkflowTimeout = timeout

	if err := m.svc.Validate(cfg); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cfg = cfg
	m.sources = sources
	subscribers := append([]OnChangeFunc(nil), m.onChange...)
	m.mu.Unlock()

	for _, cb := range subscribers {
		cb(cfg)
	}
	return cfg, nil
}

// Reload re-runs Load against the sources given to the last successful
// Load call — the step a file watcher triggers on a config file change.
func (m *Manager) Reload(ctx context.Context) (*Config, error) {
	m.mu.RLock()
	sources := append([]Source(nil), m.sources...)
	m.mu.RUnlock()
	return m.Load(ctx, sources...)
}

// Get returns the most recently loaded Config, or Default if Load was
// never called.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return Default()
	}
	return m.cfg
}

// OnChange registers cb to run after every future successful Load/Reload.
func (m *Manager) OnChange(cb OnChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, cb)
}

// Service exposes the validator backing this Manager, for callers (like
// a `config validate` CLI subcommand) that need it directly.
func (m *Manager) Service() *Service {
	return m.svc
}
