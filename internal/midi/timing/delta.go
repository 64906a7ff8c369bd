// Package timing converts backend clocks into per-message delta times.
package timing

import (
	"sync"
	"time"
)

// Delta tracks the arrival time of the previous message on one port. The
// first message reports a delta of zero.
type Delta struct {
	mu      sync.Mutex
	started bool
	lastMS  int64
	last    time.Time
	now     func() time.Time
}

// NewDelta returns a Delta using the wall clock.
func NewDelta() *Delta {
	return &Delta{now: time.Now}
}

// Millis returns the seconds elapsed since the previous call given a
// backend-supplied timestamp in milliseconds.
func (d *Delta) Millis(ms int64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		d.started = true
		d.lastMS = ms
		return 0
	}
	diff := ms - d.lastMS
	d.lastMS = ms
	if diff < 0 {
		return 0
	}
	return float64(diff) / 1000
}

// Now returns the seconds elapsed since the previous call, measured with the
// local clock. Used by backends that do not timestamp incoming messages.
func (d *Delta) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.started {
		d.started = true
		d.last = now
		return 0
	}
	diff := now.Sub(d.last)
	d.last = now
	if diff < 0 {
		return 0
	}
	return diff.Seconds()
}
