package config

import (
	"context"
	"sync"
)

type ctxKey string

const managerCtxKey ctxKey = "config-manager"

// ContextWithManager returns a child context carrying mgr.
func ContextWithManager(ctx context.Context, mgr *Manager) context.Context {
	return context.WithValue(ctx, managerCtxKey, mgr)
}

// ManagerFromContext returns the Manager stored in ctx, or nil if none
// was attached.
func ManagerFromContext(ctx context.Context) *Manager {
	mgr, _ := ctx.Value(managerCtxKey).(*Manager)
	return mgr
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// Load builds a process-wide Manager from the default layer stack
// (defaults, then FLOWFORGE_ environment variables), stores it as the
// package global, and returns the resolved Config. Most commands call
// this once at startup; long-running hosts should prefer building their
// own Manager so they can add a YAML file layer and Watch it.
func Load() (*Config, error) {
	mgr := NewManager(nil)
	cfg, err := mgr.Load(context.Background(), NewDefaultProvider(), NewEnvProvider())
	if err != nil {
		return nil, err
	}
	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()
	return cfg, nil
}

// Get returns the global Config, or Default() if Load was never called.
func Get() *Config {
	globalMu.RLock()
	mgr := globalManager
	globalMu.RUnlock()
	if mgr == nil {
		return Default()
	}
	return mgr.Get()
}
