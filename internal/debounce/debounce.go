// Package debounce collapses bursts of signals into one deferred action.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet window used when none is given.
const DefaultInterval = 1000 * time.Millisecond

// Debouncer holds a single pending action and fires it once the interval
// passes without another Debounce call. It must not be shared between
// independent producers.
type Debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	action  func()
	gen     uint64
	stopped bool
}

// New creates a Debouncer. A non-positive interval selects DefaultInterval.
func New(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{interval: interval}
}

// Interval returns the quiet window.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Debounce replaces the pending action and restarts the window. The action
// runs on a timer goroutine.
func (d *Debouncer) Debounce(action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.action = action
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.action == nil {
		d.mu.Unlock()
		return
	}
	action := d.action
	d.action = nil
	d.mu.Unlock()
	action()
}

// Pending reports whether an action is waiting to fire.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.action != nil
}

// Stop cancels the pending action. Later Debounce calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.action = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
