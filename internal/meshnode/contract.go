// Package meshnode implements the per-peer WebRTC channel state machine
// (component D), its NodeChannel/AccountChannel specializations
// (component E), and the signalling contract it depends on (component F).
// This is the core of the channel subsystem described in spec.md.
package meshnode

import (
	"context"

	"github.com/1ureka/meshnode/internal/envelope"
)

// Transport is the contract a channel drives its command and data
// DataChannels through. internal/webrtc.DataChannel satisfies it
// structurally; tests substitute an in-memory fake.
type Transport interface {
	Send(data []byte) error
	OnMessage(fn func(data []byte))
	OnOpen(fn func())
	OnClose(fn func())
	OnError(fn func(err error))
	IsOpen() bool
	BufferedAmount() uint64
	Close() error
}

// Signalling is the out-of-band transport the state machine uses to
// exchange negotiation envelopes before stability (component F).
// Implementations MUST queue Send calls issued while IsOpen()==false and
// flush them in order on open, and MUST deliver inbound envelopes exactly
// once in arrival order.
type Signalling interface {
	IsOpen() bool
	Connect(ctx context.Context) error
	Disconnect() error
	Send(env envelope.Envelope) error
	OnOpen(fn func())
	OnReceiveMessage(fn func(env envelope.Envelope))
}
