// Package watcher rebuilds the index when the document directory changes.
// Bursts of filesystem events are coalesced into a single rebuild once the
// directory has been quiet for the debounce window.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer"
)

type Rebuilder interface {
	Build(ctx context.Context, sourceDir string) (*indexer.BuildStats, error)
}

type Watcher struct {
	dir      string
	debounce time.Duration
	builder  Rebuilder
	logger   *slog.Logger
}

func New(dir string, debounce time.Duration, builder Rebuilder) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		builder:  builder,
		logger:   slog.Default().With("component", "watcher", "dir", dir),
	}
}

// Run watches until ctx is cancelled. Build failures are logged; the next
// change triggers another attempt.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching document directory", "debounce", w.debounce)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopping")
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("document directory changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify error", "error", err)
		case <-timer.C:
			if _, err := w.builder.Build(ctx, w.dir); err != nil && ctx.Err() == nil {
				w.logger.Error("rebuild after change failed", "error", err)
			}
		}
	}
}

// relevant drops attribute-only changes and upload staging files.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return !strings.HasPrefix(filepath.Base(event.Name), ".")
}
