package internal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher wraps an fsnotify watcher over a library tree. It reports media
// files once they stopped changing for the settle delay.
type Watcher struct {
	watcher *fsnotify.Watcher
	cfg     *Config
	logger  *zap.Logger
	settle  time.Duration

	events chan string
	errors chan error
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]time.Time // path -> time it is considered settled
	ignored map[string]time.Time // path -> end of the ignore window
}

// NewWatcher watches root and all of its subdirectories.
func NewWatcher(root string, cfg *Config, settle time.Duration, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		cfg:     cfg,
		logger:  logger,
		settle:  settle,
		events:  make(chan string, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]time.Time),
		ignored: make(map[string]time.Time),
	}

	if err := w.addRecursive(root, false); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.processEvents()

	return w, nil
}

// addRecursive adds a directory and all its subdirectories to the watcher.
// With schedule set, media files already inside are queued too, for
// folders that were moved or copied in whole.
func (w *Watcher) addRecursive(root string, schedule bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		if schedule && w.cfg.IsMedia(filepath.Ext(path)) {
			w.schedule(path)
		}
		return nil
	})
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	w.pending[path] = time.Now().Add(w.settle)
	w.mu.Unlock()
}

// processEvents turns raw fsnotify events into settled file paths.
func (w *Watcher) processEvents() {
	tick := time.NewTicker(w.tickInterval())
	defer tick.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// error channel is full, drop error
			}

		case <-tick.C:
			w.flushSettled()

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) tickInterval() time.Duration {
	if d := w.settle / 2; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name, true); err != nil {
				w.logger.Warn("failed to watch new folder", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !w.cfg.IsMedia(filepath.Ext(event.Name)) {
		return
	}
	w.schedule(event.Name)
}

func (w *Watcher) flushSettled() {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Before(at) {
			continue
		}
		delete(w.pending, path)
		ready = append(ready, path)
	}
	for path, until := range w.ignored {
		if now.After(until) {
			delete(w.ignored, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if _, err := os.Stat(path); err != nil {
			continue // gone again, e.g. renamed by us
		}
		select {
		case w.events <- path:
		case <-w.done:
			return
		}
	}
}

// Ignore suppresses events for path for a few settle periods. Files the
// normalizer itself renamed or rewrote are ignored so they are not
// processed again.
func (w *Watcher) Ignore(path string) {
	w.mu.Lock()
	w.ignored[path] = time.Now().Add(3 * w.settle)
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) isIgnored(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	until, ok := w.ignored[path]
	return ok && time.Now().Before(until)
}

// Events returns the channel of settled media file paths.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Errors returns the channel of watcher errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Run hands every settled file to handle until ctx is done. handle returns
// the path the file ended up at; both paths are then ignored for a while.
func (w *Watcher) Run(ctx context.Context, handle func(path string) string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.errors:
			w.logger.Warn("watch error", zap.Error(err))
		case path := <-w.events:
			if w.isIgnored(path) {
				continue
			}
			final := handle(path)
			w.Ignore(path)
			if final != "" && final != path {
				w.Ignore(final)
			}
		}
	}
}

// Close stops the watcher and cleans up resources
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
