// Package watcher provides debounced file watching built on fsnotify.
// Bursts of filesystem events (editors often write, chmod and rename on
// a single save) are coalesced into one handler call.
package watcher

import (
	"errors"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/hud/internal/debounce"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("watcher: watcher is closed")

// Event is a coalesced file system event.
type Event struct {
	// Path is the path the event occurred on.
	Path string
	// Op is the raw fsnotify operation bitmask.
	Op fsnotify.Op
}

// Handler receives the batch of events accumulated during one debounce
// window.
type Handler func(events []Event)

// ErrorHandler is called when the underlying watcher reports an error.
type ErrorHandler func(err error)

// Watcher watches files and directories, delivering debounced batches.
type Watcher struct {
	fs      *fsnotify.Watcher
	deb     *debounce.Debouncer
	handler Handler
	onError ErrorHandler
	done    chan struct{}

	mu      sync.Mutex
	pending []Event
	closed  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithErrorHandler installs a callback for watch errors.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithDebounceDuration overrides the batching window.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.deb = debounce.New(d) }
}

// New creates a Watcher delivering batches to handler.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:      fs,
		deb:     debounce.New(debounce.DefaultDuration),
		handler: handler,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w, nil
}

// Add starts watching a file or directory.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()
	return w.fs.Add(path)
}

// Remove stops watching a path.
func (w *Watcher) Remove(path string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()
	return w.fs.Remove(path)
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.pending = nil
	w.mu.Unlock()

	w.deb.Cancel()
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.enqueue(Event{Path: ev.Name, Op: ev.Op})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) enqueue(ev Event) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, ev)
	w.mu.Unlock()

	w.deb.Trigger(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.pending
	w.pending = nil
	closed := w.closed
	w.mu.Unlock()

	if closed || len(events) == 0 {
		return
	}
	w.handler(events)
}
