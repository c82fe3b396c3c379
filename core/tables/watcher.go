package tables

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"premium-rater/internal/logging"
)

// DefaultDebounce is how long a file must be quiet before it is reloaded
const DefaultDebounce = 250 * time.Millisecond

// FileSource is a provider backed by files on disk
type FileSource interface {
	Files() []string
}

// Watcher reloads a Cached provider when its source files change.
// Rapid successive writes are debounced into one reload.
type Watcher struct {
	mu       sync.Mutex
	cached   *Cached
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	pending  time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	reloads  int
	log      *zap.Logger
}

// NewWatcher creates a watcher for cached. The wrapped provider must
// implement FileSource.
func NewWatcher(cached *Cached, debounce time.Duration) (*Watcher, error) {
	src, ok := cached.Underlying().(FileSource)
	if !ok {
		return nil, fmt.Errorf("table provider %T is not file backed", cached.Underlying())
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	files := make(map[string]bool)
	for _, f := range src.Files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		files[abs] = true
	}

	return &Watcher{
		cached:   cached,
		watcher:  fw,
		files:    files,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      logging.Named("tables.watcher"),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// watch directories; editors replace files rather than write in place
	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.watcher.Close()
			close(w.doneCh)
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.log.Info("watching calibration directory", zap.String("dir", dir))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Error("closing watcher", zap.Error(err))
	}
}

// Reloads returns how many reloads the watcher has triggered
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", zap.Error(err))

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.files[abs] {
		return
	}

	w.log.Debug("calibration file changed", zap.String("file", abs), zap.String("op", event.Op.String()))
	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	if _, err := w.cached.Reload(ctx); err != nil {
		return
	}
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
}
