// Package watcher follows the registered video file on disk so the editor can
// pick up a re-rendered or replaced file without being reloaded.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/heimdex/overlay-editor/internal/logging"
)

const DefaultDebounce = 500 * time.Millisecond

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileWatcher watches a single file. The parent directory is watched so that
// a file replaced by rename is still seen. Bursts of events for the file are
// collapsed into one callback carrying the last event.
type FileWatcher struct {
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	fs       *fsnotify.Watcher
	target   string
	dir      string
	callback func(path string, event EventType)
	timer    *time.Timer
	last     EventType
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ Watcher = (*FileWatcher)(nil)

func New(logger *slog.Logger, debounce time.Duration) *FileWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FileWatcher{logger: logger, debounce: debounce}
}

func (w *FileWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch starts following path, replacing any previously watched file.
// Watching the current target again is a no-op.
func (w *FileWatcher) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolving watch path")
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fs == nil {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "creating fsnotify watcher")
		}
		loopCtx, cancel := context.WithCancel(ctx)
		w.fs = fsw
		w.cancel = cancel
		w.done = make(chan struct{})
		go w.loop(loopCtx, fsw, w.done)
	}

	if abs == w.target {
		return nil
	}

	if dir != w.dir {
		if w.dir != "" {
			if err := w.fs.Remove(w.dir); err != nil {
				w.logger.Debug("unwatching directory", "dir", logging.SanitizePath(w.dir), "error", err)
			}
		}
		if err := w.fs.Add(dir); err != nil {
			w.dir, w.target = "", ""
			return errors.Wrapf(err, "watching %s", dir)
		}
		w.dir = dir
	}

	w.target = abs
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.logger.Info("watching video file", "path", logging.SanitizePath(abs))
	return nil
}

// Target is the file currently being watched, or "" when idle.
func (w *FileWatcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	fsw, cancel, done := w.fs, w.cancel, w.done
	w.fs, w.cancel, w.done = nil, nil, nil
	w.target, w.dir = "", ""
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	return errors.Wrap(err, "closing fsnotify watcher")
}

func (w *FileWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) handle(ev fsnotify.Event) {
	kind, ok := classify(ev.Op)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.target == "" || filepath.Clean(ev.Name) != w.target {
		return
	}

	w.last = kind
	if w.timer != nil {
		w.timer.Stop()
	}
	target := w.target
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(target) })
}

func (w *FileWatcher) fire(target string) {
	w.mu.Lock()
	if w.target != target {
		w.mu.Unlock()
		return
	}
	callback, kind := w.callback, w.last
	w.timer = nil
	w.mu.Unlock()

	w.logger.Debug("video file changed", "path", logging.SanitizePath(target), "event", kind.String())
	if callback != nil {
		callback(target, kind)
	}
}

func classify(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventDelete, true
	case op.Has(fsnotify.Create):
		return EventCreate, true
	case op.Has(fsnotify.Write):
		return EventModify, true
	default:
		return 0, false
	}
}
