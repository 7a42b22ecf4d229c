// Package debounce provides a trailing-edge debounce primitive.
//
// Realtime change feeds deliver bursts of "something changed" events;
// a Debouncer coalesces a burst into a single callback invocation after
// the configured quiet period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid Trigger calls into one fn invocation.
// The callback runs on a timer goroutine after the delay elapses with
// no further triggers. Zero value is not usable; use New.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

// New creates a Debouncer invoking fn after delay of quiet.
// A non-positive delay still defers fn to a timer goroutine, preserving
// the "never synchronous with Trigger" property.
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		delay: delay,
		fn:    fn,
	}
}

// Trigger schedules fn. Repeated triggers within the delay window reset
// the timer so only the trailing invocation fires.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any scheduled invocation and disables the debouncer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
