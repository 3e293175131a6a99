// Package debounce delays search queries until the user stops typing.
//
// A Debouncer is trailing-edge: every Trigger restarts the quiet period and
// only the last value seen when the period elapses is emitted. An empty value
// is never delayed; it cancels whatever is pending and clears immediately.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of queries into one emission per quiet period.
type Debouncer struct {
	window  time.Duration
	onQuery func(string)
	onClear func()

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// New returns a Debouncer that calls onQuery with the last non-empty value
// once window has passed without a new Trigger, and onClear synchronously
// when Trigger receives an empty value. onClear may be nil.
func New(window time.Duration, onQuery func(string), onClear func()) *Debouncer {
	return &Debouncer{
		window:  window,
		onQuery: onQuery,
		onClear: onClear,
	}
}

// Window returns the configured quiet period.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Trigger records a new input value.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	if value == "" {
		d.mu.Unlock()
		if d.onClear != nil {
			d.onClear()
		}
		return
	}

	d.timer = time.AfterFunc(d.window, func() {
		d.fire(seq, value)
	})
	d.mu.Unlock()
}

// fire emits value unless a newer Trigger (or Stop) happened after the timer
// was armed. Stop can lose the race with an expiring timer, hence the check.
func (d *Debouncer) fire(seq uint64, value string) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.onQuery(value)
}

// Cancel drops any pending emission without clearing.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether an emission is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending emission. Later Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
