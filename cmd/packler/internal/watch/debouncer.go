// Package watch rebuilds the asset output when sources change.
package watch

import (
	"sync"
	"time"

	"github.com/albertocavalcante/packler/pkg/util"
)

// MaxPending is the number of distinct pending names that forces an
// immediate flush.
const MaxPending = 1000

// Debouncer coalesces bursts of change events (editor autosave, a
// formatter touching every file) into one batch of logical names.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	window  time.Duration
	onFlush func(names []string)
	stopped bool
}

// NewDebouncer creates a debouncer that calls onFlush with the sorted
// changed names once window has passed without a new event.
func NewDebouncer(window time.Duration, onFlush func(names []string)) *Debouncer {
	return &Debouncer{
		pending: make(map[string]struct{}),
		window:  window,
		onFlush: onFlush,
	}
}

// Add records a change and restarts the window.
func (d *Debouncer) Add(name string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending[name] = struct{}{}
	if d.timer != nil {
		// A timer that already fired finds nothing pending and returns.
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) >= MaxPending {
		names := d.drainLocked()
		d.mu.Unlock()
		d.call(names)
		return
	}
	d.timer = time.AfterFunc(d.window, d.FlushNow)
	d.mu.Unlock()
}

// FlushNow delivers pending names without waiting for the window.
func (d *Debouncer) FlushNow() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.stopped {
		d.mu.Unlock()
		return
	}
	names := d.drainLocked()
	d.mu.Unlock()
	d.call(names)
}

// Stop flushes what is pending and ignores later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	names := d.drainLocked()
	d.mu.Unlock()
	d.call(names)
}

// PendingCount returns the number of names waiting to be flushed.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// drainLocked empties the pending set. Caller must hold d.mu.
func (d *Debouncer) drainLocked() []string {
	if len(d.pending) == 0 {
		return nil
	}
	names := util.SortedKeys(d.pending)
	d.pending = make(map[string]struct{})
	return names
}

// call runs the handler outside the lock.
func (d *Debouncer) call(names []string) {
	if len(names) > 0 && d.onFlush != nil {
		d.onFlush(names)
	}
}
