package config

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/romdo/go-debounce"

	"github.com/flowforge/flowforge/pkg/logger"
)

// fileChangeDebounce absorbs the burst of fsnotify events a single save
// typically produces (write + chmod, or the remove+create an editor's
// atomic-rename save does).
const fileChangeDebounce = 300 * time.Millisecond

// Watch reloads m whenever the file at path changes, until ctx is done.
// It returns once the watcher is established; reload errors are logged
// rather than propagated, since a bad edit shouldn't crash an already
// running process.
func (m *Manager) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return err
	}
	debounced, cancelDebounce := debounce.New(fileChangeDebounce)
	go func() {
		log := logger.FromContext(ctx)
		defer cancelDebounce()
		defer func() {
			if closeErr := watcher.Close(); closeErr != nil {
				log.Warn("failed to close config watcher", "error", closeErr)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				debounced(func() {
					if _, reloadErr := m.Reload(ctx); reloadErr != nil {
						log.Warn("config reload failed", "path", path, "error", reloadErr)
					} else {
						log.Info("configuration reloaded", "path", path)
					}
				})
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("config watcher error", "error", watchErr)
			}
		}
	}()
	return nil
}
