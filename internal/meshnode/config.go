package meshnode

import "time"

// Config collects the channel's tunables. Zero-valued fields fall back to
// the defaults via DefaultConfig.
type Config struct {
	ICEServers []string

	SignallingTimeout time.Duration // default 10s, end-to-end Connecting→Signalling-complete
	HeartbeatInterval time.Duration // default 1s
	HeartbeatTimeout  time.Duration // default 1s
	MaxLatency        time.Duration // above this, onHighLatency fires (debounced)
	AuditInterval     time.Duration // default 200ms
	CloseDrainTimeout time.Duration // default 500ms
	CloseDrainPoll    time.Duration // default 50ms

	BufferMaxTime     time.Duration // BufferAuditor commitment expiry, default 500ms
	BufferCleanPeriod time.Duration // BufferAuditor cleanup period, default 50ms
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		SignallingTimeout: 10 * time.Second,
		HeartbeatInterval: 1000 * time.Millisecond,
		HeartbeatTimeout:  1000 * time.Millisecond,
		MaxLatency:        300 * time.Millisecond,
		AuditInterval:     200 * time.Millisecond,
		CloseDrainTimeout: 500 * time.Millisecond,
		CloseDrainPoll:    50 * time.Millisecond,
		BufferMaxTime:     500 * time.Millisecond,
		BufferCleanPeriod: 50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SignallingTimeout <= 0 {
		c.SignallingTimeout = d.SignallingTimeout
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.MaxLatency <= 0 {
		c.MaxLatency = d.MaxLatency
	}
	if c.AuditInterval <= 0 {
		c.AuditInterval = d.AuditInterval
	}
	if c.CloseDrainTimeout <= 0 {
		c.CloseDrainTimeout = d.CloseDrainTimeout
	}
	if c.CloseDrainPoll <= 0 {
		c.CloseDrainPoll = d.CloseDrainPoll
	}
	if c.BufferMaxTime <= 0 {
		c.BufferMaxTime = d.BufferMaxTime
	}
	if c.BufferCleanPeriod <= 0 {
		c.BufferCleanPeriod = d.BufferCleanPeriod
	}
	return c
}
