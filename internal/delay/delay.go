// Package delay implements a scoped, one-shot cancellable timer used by the
// channel state machine for signalling and other negotiation timeouts
// (component C).
package delay

import (
	"sync"
	"time"
)

// Delay is a one-shot timer. Start is idempotent-fail after the first call.
// If it elapses without cancellation, OnTimeout fires exactly once. If
// cancelled non-silently before expiry, OnCancellation fires exactly once
// and OnTimeout never fires. A silent cancellation fires neither callback —
// used when cancelling from inside a lock the channel already holds, to
// avoid re-entrant notification deadlocks.
type Delay struct {
	duration time.Duration

	OnTimeout      func()
	OnCancellation func()

	mu        sync.Mutex
	timer     *time.Timer
	started   bool
	expired   bool
	cancelled bool
	done      chan struct{}
}

// New creates a Delay of the given duration. Callbacks may be set on the
// returned value before Start is called.
func New(duration time.Duration) *Delay {
	return &Delay{duration: duration, done: make(chan struct{})}
}

// IsStarted reports whether Start has been called.
func (d *Delay) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

// IsExpired reports whether the delay elapsed without cancellation.
func (d *Delay) IsExpired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expired
}

// IsCancelled reports whether Cancel was called before expiry.
func (d *Delay) IsCancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

// Start arms the timer. Returns false if already started.
func (d *Delay) Start() bool {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return false
	}
	d.started = true
	d.mu.Unlock()

	d.timer = time.AfterFunc(d.duration, d.fire)
	return true
}

func (d *Delay) fire() {
	d.mu.Lock()
	if d.cancelled || d.expired {
		d.mu.Unlock()
		return
	}
	d.expired = true
	close(d.done)
	cb := d.OnTimeout
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Cancel stops the timer before it fires. If silent is false and the delay
// had not already expired, OnCancellation fires exactly once. Safe to call
// multiple times and safe to call whether or not Start was ever called.
func (d *Delay) Cancel(silent bool) {
	d.mu.Lock()
	if d.cancelled || d.expired {
		d.mu.Unlock()
		return
	}
	d.cancelled = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.done)
	cb := d.OnCancellation
	d.mu.Unlock()

	if !silent && cb != nil {
		cb()
	}
}

// Done returns a channel closed once the delay has either expired or been
// cancelled.
func (d *Delay) Done() <-chan struct{} {
	return d.done
}
