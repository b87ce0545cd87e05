package routing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/fsnotify.v1"
)

// Watch invalidates c whenever the routing file at path is written, created
// or replaced. It watches the parent directory so editors that save via
// rename are still seen. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, c *Cache) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("routing: watch %q: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("routing: create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("routing: watch %q: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Info("routing: config file changed, invalidating cache", "path", abs, "op", ev.Op.String())
			c.Invalidate()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("routing: watcher error", "path", abs, "err", err)
		}
	}
}
