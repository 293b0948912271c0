package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a catalog directory and invokes a reload callback
// after file changes settle. Long-running servers use it to swap in a
// freshly loaded catalog; one-shot CLI runs don't watch at all.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for dir. onChange runs on the watcher
// goroutine after the debounce window; it should rebuild the catalog and
// atomically publish it.
func NewWatcher(dir string, debounce time.Duration, onChange func(ctx context.Context), logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange, logger: logger}
}

// Run watches until ctx is cancelled. Watch errors are logged, never
// fatal; a missing directory is the only startup error.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("catalog watcher: watch %s: %w", w.dir, err)
	}

	w.logger.Info("watching catalog directory", "dir", w.dir)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(ev.Name), ".json") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

// schedule (re)arms the debounce timer so a burst of writes triggers a
// single reload.
func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Info("catalog changed, reloading")
		w.onChange(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
