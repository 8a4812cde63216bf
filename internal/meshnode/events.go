package meshnode

import (
	"sync"
	"time"

	"github.com/1ureka/meshnode/internal/envelope"
)

// events holds the observer callbacks a channel fires. Single-callback
// fields are sufficient here — ChannelManager is always the sole
// subscriber — but are still guarded by a mutex since On* setters and
// firing both happen from arbitrary goroutines.
type events struct {
	mu sync.Mutex

	onOpen        func()
	onStable      func()
	onStateChange func(State)
	onMessage     func(envelope.Envelope)
	onLatency     func(time.Duration)
	onHighLatency func(time.Duration)
	onTimeout     func()
	onDispose     func()
}

func (e *events) setOpen(fn func())                      { e.mu.Lock(); e.onOpen = fn; e.mu.Unlock() }
func (e *events) setStable(fn func())                     { e.mu.Lock(); e.onStable = fn; e.mu.Unlock() }
func (e *events) setStateChange(fn func(State))            { e.mu.Lock(); e.onStateChange = fn; e.mu.Unlock() }
func (e *events) setMessage(fn func(envelope.Envelope))    { e.mu.Lock(); e.onMessage = fn; e.mu.Unlock() }
func (e *events) setLatency(fn func(time.Duration))        { e.mu.Lock(); e.onLatency = fn; e.mu.Unlock() }
func (e *events) setHighLatency(fn func(time.Duration))    { e.mu.Lock(); e.onHighLatency = fn; e.mu.Unlock() }
func (e *events) setTimeout(fn func())                    { e.mu.Lock(); e.onTimeout = fn; e.mu.Unlock() }
func (e *events) setDispose(fn func())                    { e.mu.Lock(); e.onDispose = fn; e.mu.Unlock() }

func (e *events) fireOpen() {
	e.mu.Lock()
	fn := e.onOpen
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *events) fireStable() {
	e.mu.Lock()
	fn := e.onStable
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *events) fireStateChange(s State) {
	e.mu.Lock()
	fn := e.onStateChange
	e.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (e *events) fireMessage(env envelope.Envelope) {
	e.mu.Lock()
	fn := e.onMessage
	e.mu.Unlock()
	if fn != nil {
		fn(env)
	}
}

func (e *events) fireLatency(d time.Duration) {
	e.mu.Lock()
	fn := e.onLatency
	e.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

func (e *events) fireHighLatency(d time.Duration) {
	e.mu.Lock()
	fn := e.onHighLatency
	e.mu.Unlock()
	if fn != nil {
		fn(d)
	}
}

func (e *events) fireTimeout() {
	e.mu.Lock()
	fn := e.onTimeout
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *events) fireDispose() {
	e.mu.Lock()
	fn := e.onDispose
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnOpen registers the callback fired each time the channel enters Open,
// including re-entry after a soft close and reopen.
func (b *Base) OnOpen(fn func()) { b.events.setOpen(fn) }

// OnStable registers the callback fired each time the channel becomes
// stable; a soft close clears stability, so a reopen fires it again.
func (b *Base) OnStable(fn func()) { b.events.setStable(fn) }

// OnStateChange registers the callback fired on every distinct state transition.
func (b *Base) OnStateChange(fn func(State)) { b.events.setStateChange(fn) }

// OnMessage registers the callback fired for every inbound application envelope.
func (b *Base) OnMessage(fn func(envelope.Envelope)) { b.events.setMessage(fn) }

// OnLatency registers the callback fired when the measured heartbeat latency changes.
func (b *Base) OnLatency(fn func(time.Duration)) { b.events.setLatency(fn) }

// OnHighLatency registers the callback fired on the transition into high latency.
func (b *Base) OnHighLatency(fn func(time.Duration)) { b.events.setHighLatency(fn) }

// OnTimeout registers the callback fired on signalling or heartbeat timeout.
func (b *Base) OnTimeout(fn func()) { b.events.setTimeout(fn) }

// OnDispose registers the callback fired exactly once when the channel is disposed.
func (b *Base) OnDispose(fn func()) { b.events.setDispose(fn) }
