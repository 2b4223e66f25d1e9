package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures a folder watcher.
//
// Debounce: quiet period after the last write before a file is ingested.
// UserID:   owner recorded on documents ingested from the folder.
type WatcherOptions struct {
	Debounce time.Duration
	UserID   string
	Logger   *slog.Logger
}

// Watcher ingests supported files created or rewritten in a directory.
type Watcher struct {
	fs       *fsnotify.Watcher
	enqueuer Enqueuer
	opts     WatcherOptions
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(enqueuer Enqueuer, opts WatcherOptions) (*Watcher, error) {
	if enqueuer == nil {
		return nil, ErrIngestorRequired
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		fs:       fs,
		enqueuer: enqueuer,
		opts:     opts,
		logger:   logger.With("component", "watcher"),
		timers:   map[string]*time.Timer{},
	}, nil
}

// Watch blocks until ctx is done, enqueueing an ingestion for every settled
// supported file in dir. The watcher is closed on return.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	defer w.close()

	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching folder", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !watchable(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func watchable(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && IsSupportedFile(path)
}

// schedule (re)arms the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	err = w.enqueuer.Enqueue(IngestRequest{FilePath: path, UserID: w.opts.UserID})
	if err != nil {
		w.logger.Error("could not enqueue file", "path", path, "err", err)
		return
	}
	w.logger.Info("file queued for ingestion", "path", path)
}

func (w *Watcher) close() {
	w.mu.Lock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
