package profile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mcp-scooter/toolbridge/internal/logger"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher reloads settings when the store's file changes on disk.
type Watcher struct {
	store    *Store
	onChange func(Settings)
	debounce time.Duration
}

// NewWatcher creates a watcher that calls onChange with each successfully
// loaded revision of the settings file.
func NewWatcher(store *Store, onChange func(Settings)) *Watcher {
	return &Watcher{store: store, onChange: onChange, debounce: reloadDebounce}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors which replace the file atomically are still observed.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.store.Path())
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Settings watcher error: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !samePath(event.Name, w.store.Path()) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	settings, err := w.store.Load()
	if err != nil {
		logger.Warnf("Settings reload failed: %v", err)
		return
	}
	logger.Infof("Settings reloaded from %s (%d MCP servers)", w.store.Path(), len(settings.McpServers))
	if w.onChange != nil {
		w.onChange(settings)
	}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return filepath.Clean(a) == filepath.Clean(b)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
