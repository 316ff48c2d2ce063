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

// DefaultPollInterval is how often [Watcher.Run] looks at the file.
const DefaultPollInterval = 5 * time.Second

// Watcher follows a config file by polling. A change is accepted only when
// the content hash differs from the current one and the new file validates;
// the callback then receives the old and the new [Config].
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu    sync.Mutex
	cur   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval of [Watcher.Run].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads and validates the file at path. onChange may be nil.
// Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultPollInterval, onChange: onChange}
	for _, o := range opts {
		o(w)
	}
	cfg, sum, mtime, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.cur, w.sum, w.mtime = cfg, sum, mtime
	return w, nil
}

// Current returns the last accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Run calls [Watcher.Check] every interval until ctx is done. Rejected
// edits are logged and the current config is kept.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			changed, err := w.Check()
			switch {
			case err != nil:
				slog.Warn("config: reload rejected, keeping current config", "path", w.path, "err", err)
			case changed:
				slog.Info("config: reloaded", "path", w.path)
			}
		}
	}
}

// Check looks at the file once. It reports whether a new config was
// accepted; an unreadable or invalid file is returned as an error and
// leaves the current config in place. A file whose modification time did
// not move is not read at all.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	same := info.ModTime().Equal(w.mtime)
	w.mu.Unlock()
	if same {
		return false, nil
	}

	cfg, sum, mtime, err := w.load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.mtime = mtime
	if sum == w.sum {
		w.mu.Unlock()
		return false, nil
	}
	old := w.cur
	w.cur, w.sum = cfg, sum
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) load() (*Config, [sha256.Size]byte, time.Time, error) {
	var sum [sha256.Size]byte
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, sum, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, sum, time.Time{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, sum, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
