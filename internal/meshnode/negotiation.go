package meshnode

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/meshnode/internal/delay"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
	iwebrtc "github.com/1ureka/meshnode/internal/webrtc"
)

const (
	labelCommand = "command"
	labelData    = "data"
)

// OpenAsync begins negotiation as the initiating side: creates the command
// and data channels, builds an SDP offer, and sends it over signalling.
//
// Besides the normal Initiating entry point, it also handles three other
// states a caller may legitimately call it from: Open is a no-op (the
// channel is already usable), Rejected refuses (the peer already declined
// this channel once), and Closed recreates only the data channel on the
// existing peer connection, without touching signalling or renegotiating
// ICE, since a soft close leaves both alive.
func (b *Base) OpenAsync(ctx context.Context, signalling Signalling) error {
	b.chMu.Lock()
	state := b.state
	switch state {
	case StateOpen:
		b.chMu.Unlock()
		b.logger.Info("OpenAsync called while already Open", nil)
		return nil
	case StateRejected:
		b.chMu.Unlock()
		return newErr(KindStateViolation, "OpenAsync", fmt.Errorf("channel was rejected, refusing to reopen"))
	case StateClosed:
		pc := b.pc
		b.chMu.Unlock()
		return b.reopenDataChannel(pc)
	case StateInitiating:
		// falls through to the normal negotiation path below
	default:
		b.chMu.Unlock()
		return newErr(KindStateViolation, "OpenAsync", fmt.Errorf("state is %s, want %s", state, StateInitiating))
	}
	pc := b.pc
	b.signalling = signalling
	b.chMu.Unlock()

	if pc == nil {
		return newErr(KindInternalPrecondition, "OpenAsync", fmt.Errorf("StartPeerConnection not called"))
	}

	cmdRaw, err := iwebrtc.CreateChannel(pc, labelCommand)
	if err != nil {
		return newErr(KindNegotiationFailed, "OpenAsync", err)
	}
	dataRaw, err := iwebrtc.CreateChannel(pc, labelData)
	if err != nil {
		return newErr(KindNegotiationFailed, "OpenAsync", err)
	}
	b.wireChannels(iwebrtc.WrapChannel(cmdRaw), iwebrtc.WrapChannel(dataRaw))

	b.wireSignalling(signalling)
	b.startSignallingTimer()

	b.transitionTo(StateConnecting)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return b.failNegotiation(err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return b.failNegotiation(err)
	}

	b.transitionTo(StateSignalling)

	env, err := b.buildEnvelope(envelope.Offer{SDP: offer.SDP}, 30, nil)
	if err != nil {
		return b.failNegotiation(err)
	}
	if err := signalling.Send(env); err != nil {
		return b.failNegotiation(err)
	}
	return nil
}

// AcceptAsync begins negotiation as the responding side: it applies the
// remote offer, creates an answer, and sends it back. It fails if the
// channel is not in Initiating.
func (b *Base) AcceptAsync(ctx context.Context, signalling Signalling, offer envelope.Offer) error {
	b.chMu.Lock()
	if b.state != StateInitiating {
		b.chMu.Unlock()
		return newErr(KindStateViolation, "AcceptAsync", fmt.Errorf("state is %s, want %s", b.state, StateInitiating))
	}
	pc := b.pc
	b.signalling = signalling
	b.chMu.Unlock()

	if pc == nil {
		return newErr(KindInternalPrecondition, "AcceptAsync", fmt.Errorf("StartPeerConnection not called"))
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		b.absorbRemoteChannel(iwebrtc.WrapChannel(dc))
	})

	b.wireSignalling(signalling)
	b.startSignallingTimer()

	b.transitionTo(StateConnecting)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}); err != nil {
		return b.failNegotiation(err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return b.failNegotiation(err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return b.failNegotiation(err)
	}

	b.transitionTo(StateSignalling)

	env, err := b.buildEnvelope(envelope.Answer{SDP: answer.SDP}, 30, nil)
	if err != nil {
		return b.failNegotiation(err)
	}
	return signalling.Send(env)
}

// RejectAsync declines an inbound offer symmetrically to acceptance: it
// sends a Rejection envelope and transitions to Rejected, releasing the
// peer connection. Valid only from Initiating.
func (b *Base) RejectAsync(signalling Signalling) error {
	b.chMu.Lock()
	if b.state != StateInitiating {
		b.chMu.Unlock()
		return newErr(KindStateViolation, "RejectAsync", fmt.Errorf("state is %s, want %s", b.state, StateInitiating))
	}
	b.chMu.Unlock()

	env, err := b.buildEnvelope(envelope.Rejection{}, 30, nil)
	if err == nil {
		_ = signalling.Send(env)
	}

	b.transitionTo(StateRejected)
	b.releasePeerConnection()
	return nil
}

// handleRemoteAnswer applies a remote SDP answer. Valid only from Signalling.
func (b *Base) handleRemoteAnswer(answer envelope.Answer) error {
	pc := b.peerConnection()
	if pc == nil {
		return newErr(KindInternalPrecondition, "handleRemoteAnswer", fmt.Errorf("no peer connection"))
	}
	if b.State() != StateSignalling {
		return newErr(KindStateViolation, "handleRemoteAnswer", fmt.Errorf("state is %s, want %s", b.State(), StateSignalling))
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		return b.failNegotiation(err)
	}
	return nil
}

// handleRemoteRejection reacts to the peer declining our offer.
func (b *Base) handleRemoteRejection() {
	b.transitionTo(StateRejected)
	b.releasePeerConnection()
}

// handleRemoteCandidate applies a remote ICE candidate, buffering is not
// necessary here since pion queues candidates internally until a remote
// description is set.
func (b *Base) handleRemoteCandidate(c envelope.Candidate) error {
	pc := b.peerConnection()
	if pc == nil {
		return nil
	}
	init := webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: &c.SDPMid, SDPMLineIndex: c.SDPMLineIndex}
	if err := pc.AddICECandidate(init); err != nil {
		return newErr(KindNegotiationFailed, "handleRemoteCandidate", err)
	}
	return nil
}

// handleLocalCandidate forwards a locally-gathered ICE candidate over
// signalling. Called from pion's own goroutine; it must not block.
func (b *Base) handleLocalCandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	b.chMu.Lock()
	signalling := b.signalling
	b.chMu.Unlock()
	if signalling == nil {
		return
	}

	init := c.ToJSON()
	mid := ""
	if init.SDPMid != nil {
		mid = *init.SDPMid
	}
	env, err := b.buildEnvelope(envelope.Candidate{
		Candidate:     init.Candidate,
		SDPMid:        mid,
		SDPMLineIndex: init.SDPMLineIndex,
	}, 30, nil)
	if err != nil {
		return
	}
	_ = signalling.Send(env)
}

// wireSignalling connects the signalling transport's inbound stream to this
// channel's negotiation handlers.
func (b *Base) wireSignalling(s Signalling) {
	s.OnReceiveMessage(func(env envelope.Envelope) {
		switch payload := env.Payload.(type) {
		case envelope.Answer:
			_ = b.handleRemoteAnswer(payload)
		case envelope.Rejection:
			b.handleRemoteRejection()
		case envelope.Candidate:
			_ = b.handleRemoteCandidate(payload)
		}
	})
}

// startSignallingTimer arms the one-shot timeout covering Connecting and
// Signalling combined.
func (b *Base) startSignallingTimer() {
	d := delay.New(b.cfg.SignallingTimeout)
	d.OnTimeout = func() {
		state := b.State()
		if state == StateConnecting || state == StateSignalling {
			b.events.fireTimeout()
			b.failNegotiation(fmt.Errorf("signalling timed out"))
		}
	}
	b.chMu.Lock()
	b.signallingTimer = d
	b.chMu.Unlock()
	d.Start()
}

func (b *Base) cancelSignallingTimer(silent bool) {
	b.chMu.Lock()
	d := b.signallingTimer
	b.chMu.Unlock()
	if d != nil {
		d.Cancel(silent)
	}
}

// transitionTo is a thin alias kept distinct from transition for call-site
// clarity at negotiation boundaries; behavior is identical.
func (b *Base) transitionTo(s State) { b.transition(s) }

func (b *Base) failNegotiation(err error) error {
	b.transitionTo(StateFailed)
	b.releasePeerConnection()
	return newErr(KindNegotiationFailed, "negotiation", err)
}

// releasePeerConnection closes the underlying peer connection, ignoring
// close errors since the connection may already be torn down by the remote.
func (b *Base) releasePeerConnection() {
	pc := b.peerConnection()
	if pc != nil {
		_ = pc.Close()
	}
}

// wireChannels installs the command and data transports and their
// callbacks once both sides of a data channel pair are known. Used by the
// initiating side immediately after creating both channels.
func (b *Base) wireChannels(command, data Transport) {
	b.chMu.Lock()
	b.command = command
	b.data = data
	b.chMu.Unlock()
	b.installChannelCallbacks(command, data)
}

// absorbRemoteChannel is invoked once per incoming DataChannel on the
// responding side; once both command and data have arrived it finishes
// wiring, matching the deterministic label-based assignment both sides agree on.
func (b *Base) absorbRemoteChannel(ch Transport) {
	raw, ok := ch.(*iwebrtc.DataChannel)
	label := ""
	if ok {
		label = raw.Raw().Label()
	}

	b.chMu.Lock()
	switch label {
	case labelCommand:
		b.command = ch
	case labelData:
		b.data = ch
	}
	command, data := b.command, b.data
	b.chMu.Unlock()

	if command != nil && data != nil {
		b.installChannelCallbacks(command, data)
	}
}

// installChannelCallbacks wires both transports' open/close/message/error
// events into the channel's protocol handling. Safe to call once both
// transports exist, regardless of which side created them.
func (b *Base) installChannelCallbacks(command, data Transport) {
	onBothOpen := func() {
		if command.IsOpen() && data.IsOpen() {
			b.cancelSignallingTimer(true)
			b.recomputeStability()
		}
	}

	command.OnOpen(onBothOpen)
	data.OnOpen(onBothOpen)

	command.OnMessage(b.handleCommandMessage)
	data.OnMessage(func(raw []byte) { b.handleDataMessage(raw) })

	command.OnClose(func() { b.handleTransportClosed() })
	data.OnClose(func() { b.handleTransportClosed() })

	command.OnError(func(err error) { b.logger.Warning("command transport error", errField(err)) })
	data.OnError(func(err error) { b.logger.Warning("data transport error", errField(err)) })
}

func errField(err error) logging.Fields { return logging.Fields{"err": err.Error()} }

// recomputeStability recomputes isStable from current ICE state and
// transport readiness, firing OnStable on each transition into stable.
func (b *Base) recomputeStability() {
	pc := b.peerConnection()
	if pc == nil {
		return
	}
	iceConnected := pc.ICEConnectionState() == webrtc.ICEConnectionStateConnected ||
		pc.ICEConnectionState() == webrtc.ICEConnectionStateCompleted

	b.chMu.Lock()
	commandOpen := b.command != nil && b.command.IsOpen()
	wasStable := b.isStable
	newStable := commandOpen && iceConnected
	b.isStable = newStable
	state := b.state
	b.chMu.Unlock()

	if newStable && !wasStable {
		b.events.fireStable()
		b.disconnectSignalling()
		if state == StateSignalling || state == StateConnecting {
			b.transitionTo(StateOpen)
		}
	}
}

// disconnectSignalling releases the out-of-band signalling transport once
// P2P stability is reached; it is held open only from Connecting through
// just after isStable first becomes true and is not needed afterward, since
// candidates/offer/answer exchange is done.
func (b *Base) disconnectSignalling() {
	b.chMu.Lock()
	s := b.signalling
	b.signalling = nil
	b.chMu.Unlock()
	if s != nil {
		_ = s.Disconnect()
	}
}

// reopenDataChannel recreates only the data channel on an already-running
// peer connection, used when OpenAsync is called from Closed: the command
// channel and ICE session survive a soft close, so reopening needs neither
// a new signalling exchange nor ICE renegotiation.
func (b *Base) reopenDataChannel(pc *webrtc.PeerConnection) error {
	if pc == nil {
		return newErr(KindInternalPrecondition, "OpenAsync", fmt.Errorf("no peer connection to reopen"))
	}
	iceConnected := pc.ICEConnectionState() == webrtc.ICEConnectionStateConnected ||
		pc.ICEConnectionState() == webrtc.ICEConnectionStateCompleted
	if !iceConnected {
		return newErr(KindStateViolation, "OpenAsync", fmt.Errorf("ICE is not connected, cannot reopen without renegotiating"))
	}

	dataRaw, err := iwebrtc.CreateChannel(pc, labelData)
	if err != nil {
		return newErr(KindNegotiationFailed, "OpenAsync", err)
	}
	data := iwebrtc.WrapChannel(dataRaw)

	b.chMu.Lock()
	b.data = data
	command := b.command
	b.chMu.Unlock()

	b.installChannelCallbacks(command, data)
	b.transitionTo(StateConnecting)
	return nil
}

func (b *Base) handleTransportClosed() {
	state := b.State()
	if state == StateOpen || state == StateClosing {
		b.transitionTo(StateFailed)
	}
}
