package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher keeps a [Store] in sync with the catalog YAML files of a
// directory. A written or created file is re-imported; a removed or renamed
// file drops the catalog of the user it provisioned.
type DirWatcher struct {
	dir      string
	store    Store
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	owners  map[string]string // path -> user
	pending map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// DirWatcherOption configures a [DirWatcher].
type DirWatcherOption func(*DirWatcher)

// WithDebounce sets how long a file must stay quiet before it is reloaded.
// Editors often write a file in several steps. The default is 200ms.
func WithDebounce(d time.Duration) DirWatcherOption {
	return func(w *DirWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewDirWatcher imports every catalog file in dir into store and starts
// watching dir for changes. Files that fail the initial import are logged
// and retried on their next change.
func NewDirWatcher(ctx context.Context, dir string, store Store, opts ...DirWatcherOption) (*DirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("catalog: watch %q: %w", dir, err)
	}

	w := &DirWatcher{
		dir:      dir,
		store:    store,
		debounce: 200 * time.Millisecond,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	owners, err := LoadDir(ctx, store, dir)
	if err != nil {
		slog.Warn("catalog watcher: initial load incomplete", "dir", dir, "err", err)
	}
	if owners == nil {
		owners = make(map[string]string)
	}
	w.owners = owners

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Owners returns a snapshot of which user each loaded file provisions.
func (w *DirWatcher) Owners() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]string, len(w.owners))
	for p, u := range w.owners {
		out[p] = u
	}
	return out
}

// Stop stops watching and waits for the event loop to exit.
func (w *DirWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsw.Close()
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.mu.Unlock()
	})
	w.wg.Wait()
}

func (w *DirWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isCatalogFile(ev.Name) {
				continue
			}
			w.schedule(filepath.Clean(ev.Name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("catalog watcher: fsnotify error", "dir", w.dir, "err", err)
		}
	}
}

// schedule (re)arms the debounce timer for path.
func (w *DirWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.sync(path) })
}

// sync re-imports path, or drops its user's catalog when it is gone.
func (w *DirWatcher) sync(path string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	delete(w.pending, path)
	prevOwner, known := w.owners[path]
	w.mu.Unlock()

	ctx := context.Background()
	user, err := importFile(ctx, w.store, path)
	if err == nil {
		w.mu.Lock()
		w.owners[path] = user
		w.mu.Unlock()
		if known && prevOwner != user {
			w.dropUser(ctx, path, prevOwner)
		}
		slog.Info("catalog watcher: catalog reloaded", "path", path, "user", user)
		return
	}

	if exists(path) {
		slog.Warn("catalog watcher: failed to reload catalog, keeping previous", "path", path, "err", err)
		return
	}
	if known {
		w.mu.Lock()
		delete(w.owners, path)
		w.mu.Unlock()
		w.dropUser(ctx, path, prevOwner)
	}
}

// dropUser deletes user's catalog unless another file still provisions it.
func (w *DirWatcher) dropUser(ctx context.Context, path, user string) {
	w.mu.Lock()
	for _, u := range w.owners {
		if u == user {
			w.mu.Unlock()
			return
		}
	}
	w.mu.Unlock()

	if err := w.store.Delete(ctx, user); err != nil {
		slog.Warn("catalog watcher: failed to drop catalog", "path", path, "user", user, "err", err)
		return
	}
	slog.Info("catalog watcher: catalog dropped", "path", path, "user", user)
}
