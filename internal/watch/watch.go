// Package watch re-runs a callback whenever a file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher monitors a single file. The parent directory is watched so that
// editors which save by renaming a temp file over the original keep
// triggering runs.
type Watcher struct {
	logger   *zap.Logger
	debounce time.Duration
}

// New creates a Watcher. A non-positive debounce uses DefaultDebounce.
func New(logger *zap.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{logger: logger.Named("watch"), debounce: debounce}
}

// Run calls fn once, then again after every write or create of path, until
// ctx is done. fn runs on the calling goroutine; events that arrive while it
// runs are coalesced into one follow-up call.
func (w *Watcher) Run(ctx context.Context, path string, fn func(context.Context)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(target)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("Watching for changes.", zap.String("path", target))

	fn(ctx)

	// Start the timer in a stopped state.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping file watcher.")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("File changed.", zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error.", zap.Error(err))

		case <-timer.C:
			if ctx.Err() != nil {
				return nil
			}
			fn(ctx)
		}
	}
}
