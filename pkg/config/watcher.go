package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a changed file is reloaded.
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads a Store when its configuration file changes.
//
// The parent directory is watched rather than the file itself so editors
// that replace the file on save (rename over it) keep triggering reloads.
type Watcher struct {
	store    *Store
	logger   *slog.Logger
	interval time.Duration
	onReload func(*Config)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for store. onReload, if not nil, is called
// with the new configuration after every successful reload.
func NewWatcher(store *Store, interval time.Duration, logger *slog.Logger, onReload func(*Config)) *Watcher {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:    store,
		logger:   logger.With("component", "config.watcher"),
		interval: interval,
		onReload: onReload,
	}
}

// Watch blocks until ctx is cancelled, reloading the store on every
// debounced write, create or rename of the configuration file.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	target, err := filepath.Abs(w.store.Path())
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(target), err)
	}

	w.logger.Info("Config watcher started",
		"path", target,
		"debounce_ms", w.interval.Milliseconds(),
	)

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Config watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event, target) {
				continue
			}
			w.logger.Debug("Config file event", "path", event.Name, "op", event.Op.String())
			w.trigger()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event, target string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == target
}

// trigger resets the debounce timer.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, w.reload)
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		w.logger.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}
	w.logger.Info("Config reloaded", "path", w.store.Path())
	if w.onReload != nil {
		w.onReload(w.store.Current())
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
