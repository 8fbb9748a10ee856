package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"live-gallery/internal/filesystem"
	"live-gallery/internal/logging"
	"live-gallery/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// Defaults for Config.
const (
	DefaultQuietPeriod       = 1500 * time.Millisecond
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultHiddenQuietPeriod = 10 * time.Minute
)

// Sink receives paths that have stopped changing.
type Sink interface {
	Enqueue(path string) bool
}

// Config controls a Watcher.
type Config struct {
	// Root is the directory tree to watch. It is created if missing.
	Root string
	// QuietPeriod is how long a file's size must stay unchanged before it is ready.
	QuietPeriod time.Duration
	// PollInterval is how often a settling file is re-examined.
	PollInterval time.Duration
	// HiddenQuietPeriod is how long a dot-file (or a file under a
	// dot-directory) must stay unchanged before it is treated as an
	// abandoned transfer and removed. Such files are never ingested;
	// uploaders rename them to their final name when complete.
	HiddenQuietPeriod time.Duration
	Retry             filesystem.RetryConfig
}

// Watcher reports each new regular file under Root once it has settled.
type Watcher struct {
	cfg  Config
	sink Sink
	log  *logging.Logger

	mu       sync.Mutex
	settling map[string]struct{}
	watched  map[string]struct{}
	wg       sync.WaitGroup
}

// New returns a watcher delivering ready files to sink.
func New(cfg Config, sink Sink) *Watcher {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.HiddenQuietPeriod <= 0 {
		cfg.HiddenQuietPeriod = DefaultHiddenQuietPeriod
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}
	return &Watcher{
		cfg:      cfg,
		sink:     sink,
		log:      logging.Component("watcher"),
		settling: make(map[string]struct{}),
		watched:  make(map[string]struct{}),
	}
}

// Serve watches Root until ctx is done. Files already present are swept
// and reported like new ones.
func (w *Watcher) Serve(ctx context.Context) error {
	if err := filesystem.EnsureDir(w.cfg.Root); err != nil {
		return fmt.Errorf("create watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			w.log.Error("failed to close file watcher: %v", err)
		}
		w.wg.Wait()
		w.resetWatched()
	}()

	w.adopt(ctx, fsw, w.cfg.Root)
	w.log.Info("watching %s (%d directories, quiet period %v)", w.cfg.Root, w.WatchedDirectories(), w.cfg.QuietPeriod)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.handleEvent(ctx, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			w.log.Error("watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Watcher) String() string { return "folder-watcher" }

// WatchedDirectories returns the number of directories being watched.
func (w *Watcher) WatchedDirectories() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Settling returns the number of files waiting for their size to settle.
func (w *Watcher) Settling() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.settling)
}

func (w *Watcher) resetWatched() {
	w.mu.Lock()
	w.watched = make(map[string]struct{})
	w.mu.Unlock()
	metrics.WatcherWatchedDirectories.Set(0)
}

// hidden reports whether any component of path below Root starts with a dot.
func (w *Watcher) hidden(path string) bool {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// adopt watches dir and every directory below it, and starts settling the
// regular files found there.
func (w *Watcher) adopt(ctx context.Context, fsw *fsnotify.Watcher, dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries can vanish mid-walk when the dispatcher consumes them
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			w.addWatch(fsw, path)
			return nil
		}
		if d.Type().IsRegular() {
			w.settle(ctx, path)
		}
		return nil
	})
	if err != nil {
		w.log.Error("failed to walk %s: %v", dir, err)
		metrics.WatcherErrors.Inc()
	}
}

func (w *Watcher) addWatch(fsw *fsnotify.Watcher, dir string) {
	w.mu.Lock()
	_, seen := w.watched[dir]
	w.mu.Unlock()
	if seen {
		return
	}

	if err := fsw.Add(dir); err != nil {
		w.log.Warn("failed to add path to watcher %s: %v", dir, err)
		metrics.WatcherErrors.Inc()
		return
	}

	w.mu.Lock()
	w.watched[dir] = struct{}{}
	n := len(w.watched)
	w.mu.Unlock()
	metrics.WatcherWatchedDirectories.Set(float64(n))
	w.log.Debug("added directory to watcher: %s", dir)
}

func (w *Watcher) dropWatch(dir string) {
	w.mu.Lock()
	if _, ok := w.watched[dir]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.watched, dir)
	n := len(w.watched)
	w.mu.Unlock()
	metrics.WatcherWatchedDirectories.Set(float64(n))
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := filesystem.StatWithRetry(event.Name, w.cfg.Retry)
		if err != nil {
			return
		}
		switch {
		case info.IsDir():
			w.adopt(ctx, fsw, event.Name)
		case info.Mode().IsRegular():
			w.settle(ctx, event.Name)
		}

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// fsnotify drops the watch itself; only the bookkeeping is ours
		w.dropWatch(event.Name)
	}
}

// eventType returns a string representation of the fsnotify operation
func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}

// settle starts a stabilizer for path unless one is already running. A
// settled file is handed to the sink; a settled hidden file is removed.
func (w *Watcher) settle(ctx context.Context, path string) {
	hidden := w.hidden(path)
	quiet := w.cfg.QuietPeriod
	if hidden {
		quiet = w.cfg.HiddenQuietPeriod
	}

	w.mu.Lock()
	if _, ok := w.settling[path]; ok {
		w.mu.Unlock()
		return
	}
	w.settling[path] = struct{}{}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.settling, path)
			w.mu.Unlock()
		}()

		if !w.waitStable(ctx, path, quiet) {
			return
		}
		if hidden {
			w.removeAbandoned(path)
			return
		}
		metrics.WatcherFilesReady.Inc()
		if w.sink.Enqueue(path) {
			w.log.Debug("%s is ready", path)
		}
	}()
}

// removeAbandoned deletes a hidden file nobody has touched for the hidden
// quiet period.
func (w *Watcher) removeAbandoned(path string) {
	if err := filesystem.RemoveFile(path); err != nil {
		w.log.Warn("failed to remove abandoned file %s: %v", path, err)
		metrics.WatcherErrors.Inc()
		return
	}
	metrics.WatcherAbandonedRemoved.Inc()
	w.log.Info("removed abandoned hidden file %s", path)
}

// waitStable polls path until its size has not changed for quiet. It
// reports false if the file disappears or ctx ends.
func (w *Watcher) waitStable(ctx context.Context, path string, quiet time.Duration) bool {
	start := time.Now()
	lastSize := int64(-1)
	lastChange := start

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				w.log.Warn("stat %s: %v", path, err)
			}
			return false
		}
		if !info.Mode().IsRegular() {
			return false
		}

		now := time.Now()
		if info.Size() != lastSize {
			lastSize = info.Size()
			lastChange = now
		} else if now.Sub(lastChange) >= quiet {
			metrics.WatcherStabilizationDuration.Observe(now.Sub(start).Seconds())
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
