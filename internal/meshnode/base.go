package meshnode

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/meshnode/internal/bufferauditor"
	"github.com/1ureka/meshnode/internal/delay"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
	iwebrtc "github.com/1ureka/meshnode/internal/webrtc"
)

// Base drives negotiation, stability detection, heartbeat, audit, and
// close/dispose for a single peer channel (component D). NodeChannel and
// AccountChannel embed it and supply Addressing.
//
// Three separable locks guard disjoint state:
//   - chMu:   state, isStable, transport references, peer connection, signalling timer
//   - hbMu:   heartbeat pending/timeout/latency bookkeeping
//   - auditMu: the in-flight audit cancellation and auditor instances
//
// No lock is ever held across an await that performs I/O or fires an event:
// state is mutated under the lock, then events are emitted after unlocking.
type Base struct {
	addressing Addressing
	cfg        Config
	logger     *logging.Logger
	events     events

	polite        bool
	initiatedByUs bool

	seq atomic.Int64

	// chMu-guarded
	chMu            sync.Mutex
	state           State
	isStable        bool
	pc              *webrtc.PeerConnection
	command         Transport
	data            Transport
	signalling      Signalling
	signallingTimer *delay.Delay
	started         bool

	// hbMu-guarded
	hbMu               sync.Mutex
	hbRunning           bool
	hbCancel            context.CancelFunc
	hbPending           bool
	hbSentAt            time.Time
	hbTimeoutSuppressed bool
	latency             time.Duration
	highLatency         bool

	// auditMu-guarded
	auditMu     sync.Mutex
	auditCancel context.CancelFunc
	cmdAuditor  *bufferauditor.Auditor
	dataAuditor *bufferauditor.Auditor
}

// NewBase constructs a channel in State=Initiating. polite and
// initiatedByUs are immutable for the channel's lifetime.
func NewBase(addressing Addressing, cfg Config, polite, initiatedByUs bool) *Base {
	cfg = cfg.withDefaults()
	return &Base{
		addressing:    addressing,
		cfg:           cfg,
		logger:        logging.New(addressing.LogFields()),
		polite:        polite,
		initiatedByUs: initiatedByUs,
		state:         StateInitiating,
	}
}

// Polite reports whether this channel yields in negotiation glare.
func (b *Base) Polite() bool { return b.polite }

// InitiatedByUs reports whether this side opened the channel.
func (b *Base) InitiatedByUs() bool { return b.initiatedByUs }

// State returns the current channel state.
func (b *Base) State() State {
	b.chMu.Lock()
	defer b.chMu.Unlock()
	return b.state
}

// IsStable reports whether command is open and ICE is connected.
func (b *Base) IsStable() bool {
	b.chMu.Lock()
	defer b.chMu.Unlock()
	return b.isStable
}

// Latency returns the last measured heartbeat round-trip, or 0 if no
// measurement exists (heartbeat not running is the common case).
func (b *Base) Latency() time.Duration {
	b.hbMu.Lock()
	defer b.hbMu.Unlock()
	return b.latency
}

// IsHighLatency reports whether the channel is currently in the debounced
// high-latency state.
func (b *Base) IsHighLatency() bool {
	b.hbMu.Lock()
	defer b.hbMu.Unlock()
	return b.highLatency
}

// setStateLocked performs the read-modify-write of state under chMu and returns
// flags telling the caller what to emit once unlocked, per the
// "compute-while-locked, emit-while-unlocked" discipline. Caller must hold chMu.
func (b *Base) setStateLocked(newState State) (shouldNotify, shouldNotifyOpen bool) {
	if b.state == newState {
		return false, false
	}
	if b.state.IsTerminal() {
		return false, false
	}
	wasOpen := b.state == StateOpen
	b.state = newState
	return true, newState == StateOpen && !wasOpen
}

// transition performs a state change and emits the resulting events outside
// the lock. After unlocking it also stops the heartbeat on every exit from
// Open, and starts the heartbeat and the auditor on every entry into Open.
func (b *Base) transition(newState State) {
	b.chMu.Lock()
	notify, notifyOpen := b.setStateLocked(newState)
	b.chMu.Unlock()

	if !notify {
		return
	}

	if newState != StateOpen {
		b.stopHeartbeatInternal()
	}

	b.events.fireStateChange(newState)
	if notifyOpen {
		b.events.fireOpen()
		b.startHeartbeatInternal(0, 0)
		b.StartAuditor()
	}
}

// nextSeq returns the next outbound envelope sequence number.
func (b *Base) nextSeq() int64 { return b.seq.Add(1) }

// buildEnvelope stamps a payload with this channel's addressing and the
// current sequence number. A non-nil signer signs the envelope; Base holds
// no signing account, and every call site in this package passes nil, so
// the envelopes it builds carry an empty Signature.
func (b *Base) buildEnvelope(payload envelope.Message, maxAge int32, signer func([]byte) (string, error)) (envelope.Envelope, error) {
	env := envelope.Envelope{
		Timestamp: time.Now().Unix(),
		MaxAge:    maxAge,
		Sequence:  b.nextSeq(),
		Sender:    b.addressing.LocalParty(),
		Receiver:  b.addressing.RemoteParty(),
		Payload:   payload,
	}
	if signer != nil {
		sig, err := signer([]byte(fmt.Sprintf("%d:%d", env.Timestamp, env.Sequence)))
		if err != nil {
			return envelope.Envelope{}, newErr(KindInternalPrecondition, "buildEnvelope", err)
		}
		env.Signature = sig
	}
	return env, nil
}

// StartPeerConnection is a one-shot initializer; it fails if already
// initialized.
func (b *Base) StartPeerConnection(iceServers []string) error {
	b.chMu.Lock()
	if b.started {
		b.chMu.Unlock()
		return newErr(KindInternalPrecondition, "StartPeerConnection", fmt.Errorf("already initialized"))
	}
	b.started = true
	b.chMu.Unlock()

	servers := iceServers
	if len(servers) == 0 {
		servers = b.cfg.ICEServers
	}

	pc, err := iwebrtc.NewPeerConnection(servers)
	if err != nil {
		return newErr(KindNegotiationFailed, "StartPeerConnection", err)
	}

	b.chMu.Lock()
	b.pc = pc
	b.chMu.Unlock()

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		b.recomputeStability()
	})
	pc.OnICECandidate(b.handleLocalCandidate)

	return nil
}

// peerConnection returns the peer connection, or nil if not yet started.
func (b *Base) peerConnection() *webrtc.PeerConnection {
	b.chMu.Lock()
	defer b.chMu.Unlock()
	return b.pc
}
