package snapshot

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher triggers a rescan of its manager after markdown files under the
// corpus root change. Bursts of events are debounced into one rescan.
type Watcher struct {
	mu       sync.Mutex
	mgr      *Manager
	watcher  *fsnotify.Watcher
	log      *zap.Logger
	debounce time.Duration
	lastHit  time.Time
	dirty    bool
	onRescan func(*Report, error)
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher returns a watcher for mgr. onRescan, if not nil, receives the
// outcome of every triggered rescan from the watcher goroutine.
func NewWatcher(mgr *Manager, debounce time.Duration, onRescan func(*Report, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		mgr:      mgr,
		watcher:  fw,
		log:      mgr.log.Named("watch"),
		debounce: debounce,
		onRescan: onRescan,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds every directory under the corpus root and begins watching in
// a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.mgr.Root()); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Warn("cannot close file watcher", zap.Error(err))
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("cannot watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			w.mark()
			return
		}
	}
	if !strings.HasSuffix(ev.Name, ".md") {
		return
	}
	w.log.Debug("corpus file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
	w.mark()
}

func (w *Watcher) mark() {
	w.mu.Lock()
	w.dirty = true
	w.lastHit = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	due := w.dirty && time.Since(w.lastHit) >= w.debounce
	if due {
		w.dirty = false
	}
	w.mu.Unlock()
	if !due {
		return
	}

	rep, err := w.mgr.Rescan(ctx)
	if err != nil {
		w.log.Warn("rescan failed", zap.Error(err))
	}
	if w.onRescan != nil {
		w.onRescan(rep, err)
	}
}
