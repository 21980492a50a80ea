// Package debounce provides the cancellable timer used by every hud
// controller that coalesces rapid changes into a single side effect
// (persistence writes, server sync, agent payload merges).
package debounce

import (
	"sync"
	"time"
)

// DefaultDuration is the debounce window used when none is configured.
const DefaultDuration = 250 * time.Millisecond

// Debouncer coalesces rapid triggers into a single callback invocation.
// Each controller owns exactly one Debouncer per concern; a new
// qualifying change cancels and reschedules rather than stacking timers.
type Debouncer struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	pending  func()
}

// New creates a Debouncer with the given window. A zero duration falls
// back to DefaultDuration.
func New(duration time.Duration) *Debouncer {
	if duration == 0 {
		duration = DefaultDuration
	}
	return &Debouncer{duration: duration}
}

// Trigger schedules callback to run after the debounce window. A prior
// pending callback is cancelled and replaced.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = callback
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		cb := d.pending
		d.pending = nil
		d.timer = nil
		d.mu.Unlock()
		if cb != nil {
			cb()
		}
	})
}

// Cancel drops any pending callback without running it.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush cancels the pending timer and runs the pending callback
// immediately, if any. Used by force-save/force-sync paths.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	cb := d.pending
	d.pending = nil
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Duration returns the debounce window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
