package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a single configuration file.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	target   string // resolved symlink target, if path is a link
	debounce time.Duration
	logger   *logrus.Entry

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches the directory holding path. fsnotify does not follow
// symlinks, so when path is a link the target's directory is watched too.
func NewWatcher(path string, debounce time.Duration, logger *logrus.Entry) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		path:     abs,
		debounce: debounce,
		logger:   logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if target, err := filepath.EvalSymlinks(abs); err == nil {
			w.target = target
			if filepath.Dir(target) != filepath.Dir(abs) {
				if err := fw.Add(filepath.Dir(target)); err != nil {
					logger.WithError(err).Warnf("Failed to watch symlink target dir %s", filepath.Dir(target))
				}
			}
		}
	}
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string { return w.path }

// Run calls onChange after the file has been written, created or renamed
// into place and then left alone for the debounce period. It blocks until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) {
	defer w.stopTimer()
	defer w.watcher.Close()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(ctx, onChange)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) matches(name string) bool {
	clean := filepath.Clean(name)
	return clean == w.path || (w.target != "" && clean == w.target)
}

// schedule restarts the debounce timer so only the last event of a burst fires.
func (w *Watcher) schedule(ctx context.Context, onChange func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.logger.Infof("Config changed: %s", filepath.Base(w.path))
		onChange(w.path)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops the watcher without waiting for Run to return.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
