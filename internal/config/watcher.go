package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and the newly loaded config together with
// the fields that differ between them.
type ChangeFunc func(old, new *Config, diff ConfigDiff)

// fileState is one validated reading of the config file.
type fileState struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// readState loads path and validates it. The returned state is only usable
// when err is nil.
func readState(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileState{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return fileState{}, err
	}
	return fileState{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}

// Watcher keeps the surveyscribe config file in sync with a running server.
// The file is polled; a new modification time triggers a re-read, and a
// changed, valid body replaces the current config and is passed to the
// ChangeFunc. Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	log      *slog.Logger

	mu    sync.Mutex
	state fileState

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often the file is checked. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger routes reload and rejection messages to l instead of
// slog.Default.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher reads path once and fails if that first read does not
// validate. Polling starts in the background; see [Watcher.Run] and
// [Watcher.Stop].
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	st, err := readState(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.state = st

	go w.loop()
	return w, nil
}

// Current returns the config from the last accepted reload.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.cfg
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Run blocks until ctx is cancelled and then stops the watcher, so the
// watcher can share an errgroup with the HTTP server.
func (w *Watcher) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-w.done:
	}
	w.Stop()
	return nil
}

func (w *Watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
			if old, next, diff, ok := w.reload(); ok && w.onChange != nil {
				w.onChange(old, next, diff)
			}
		}
	}
}

// reload reports ok when the file body changed and the new config was
// accepted. The ChangeFunc is called by loop after the lock is released so
// it may call Current.
func (w *Watcher) reload() (old, next *Config, diff ConfigDiff, ok bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config: watcher cannot stat file", "path", w.path, "err", err)
		return nil, nil, ConfigDiff{}, false
	}

	w.mu.Lock()
	seen := w.state.mtime
	w.mu.Unlock()
	if info.ModTime().Equal(seen) {
		return nil, nil, ConfigDiff{}, false
	}

	st, err := readState(w.path)
	if err != nil {
		w.log.Warn("config: watcher kept previous config", "reason", "invalid edit", "path", w.path, "err", err)
		return nil, nil, ConfigDiff{}, false
	}

	w.mu.Lock()
	prev := w.state
	if st.sum == prev.sum {
		w.state.mtime = st.mtime
		w.mu.Unlock()
		return nil, nil, ConfigDiff{}, false
	}
	w.state = st
	w.mu.Unlock()

	diff = Diff(prev.cfg, st.cfg)
	w.log.Info("config: reloaded", "path", w.path, "changes", diff.Fields())
	return prev.cfg, st.cfg, diff, true
}
