package directory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrWong99/telephonist/internal/observe"
)

// FileWatcher keeps a [MemStore] in sync with a contacts file. It polls the
// file's modification time and reloads when the content hash changes. With
// [WithNotify] filesystem events trigger a check immediately; polling stays
// active as the fallback. An invalid file is logged and the previous contacts
// stay in place.
type FileWatcher struct {
	path     string
	store    *MemStore
	interval time.Duration
	metrics  *observe.Metrics
	onReload func(n int)
	notify   bool

	mu        sync.Mutex
	lastMtime time.Time
	lastHash  [sha256.Size]byte
	loaded    int
}

// WatcherOption configures a [FileWatcher].
type WatcherOption func(*FileWatcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithWatcherMetrics(m *observe.Metrics) WatcherOption {
	return func(w *FileWatcher) { w.metrics = m }
}

// OnReload registers fn to be called with the new contact count after every
// successful reload.
func OnReload(fn func(n int)) WatcherOption {
	return func(w *FileWatcher) { w.onReload = fn }
}

// WithNotify subscribes to filesystem events for the contacts file in
// addition to polling.
func WithNotify() WatcherOption {
	return func(w *FileWatcher) { w.notify = true }
}

// NewFileWatcher loads path into store and returns a watcher for it. Polling
// starts with [FileWatcher.Run].
func NewFileWatcher(path string, store *MemStore, opts ...WatcherOption) (*FileWatcher, error) {
	w := &FileWatcher{
		path:     path,
		store:    store,
		interval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}

	cf, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("directory: watcher initial load: %w", err)
	}
	if err := w.apply(cf); err != nil {
		return nil, fmt.Errorf("directory: watcher initial load: %w", err)
	}
	w.lastHash = hash
	w.lastMtime = mtime
	return w, nil
}

// Run polls until ctx is done. It always returns nil.
func (w *FileWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.notify {
		fw, err := w.subscribe()
		if err != nil {
			slog.Warn("contacts watcher: filesystem events unavailable, polling only", "path", w.path, "err", err)
		} else {
			defer fw.Close()
			events, errs = fw.Events, fw.Errors
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(w.path) && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				w.check()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("contacts watcher: filesystem event error", "path", w.path, "err", err)
		}
	}
}

// subscribe watches the file's directory so that editors replacing the file
// through a rename are still seen.
func (w *FileWatcher) subscribe() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

// check reloads the file if it changed.
func (w *FileWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("contacts watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	cf, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("contacts watcher: failed to load contacts", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastMtime = newMtime
	if hash == w.lastHash {
		return
	}
	if err := w.apply(cf); err != nil {
		slog.Warn("contacts watcher: rejected contacts", "path", w.path, "err", err)
		return
	}
	w.lastHash = hash
	slog.Info("contacts watcher: contacts reloaded", "path", w.path, "contacts", len(cf.Contacts))
}

// apply replaces the store content and updates the entry gauge.
func (w *FileWatcher) apply(cf *File) error {
	if err := w.store.Replace(cf.Contacts); err != nil {
		return err
	}
	n := len(cf.Contacts)
	w.metrics.DirectoryEntries.Add(context.Background(), int64(n-w.loaded))
	w.loaded = n
	if w.onReload != nil {
		w.onReload(n)
	}
	return nil
}

// loadAndHash reads and validates the contacts file and returns it with the
// file's SHA-256 hash and modification time.
func (w *FileWatcher) loadAndHash() (*File, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}

	cf, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	return cf, sha256.Sum256(data), info.ModTime(), nil
}
