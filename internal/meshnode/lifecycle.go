package meshnode

import (
	"fmt"
	"time"

	"github.com/1ureka/meshnode/internal/envelope"
)

// Send serializes and transmits an application envelope over the data
// channel. Valid only while Open.
func (b *Base) Send(env envelope.Envelope) error {
	if b.State() != StateOpen {
		return newErr(KindStateViolation, "Send", fmt.Errorf("state is %s, want %s", b.State(), StateOpen))
	}

	b.chMu.Lock()
	data := b.data
	b.chMu.Unlock()
	if data == nil || !data.IsOpen() {
		return newErr(KindTransportError, "Send", fmt.Errorf("data channel not open"))
	}

	wire, err := envelope.Serialize(env)
	if err != nil {
		return newErr(KindProtocolViolation, "Send", err)
	}

	b.auditMu.Lock()
	a := b.dataAuditor
	b.auditMu.Unlock()
	b.auditRecord(a, len(wire))

	if err := data.Send([]byte(wire)); err != nil {
		return newErr(KindTransportError, "Send", err)
	}
	return nil
}

// handleDataMessage decodes an inbound data-channel frame and, if it
// passes addressing admission, fires OnMessage.
func (b *Base) handleDataMessage(raw []byte) {
	if !envelope.IsEnvelope(string(raw)) {
		b.logger.Warning("dropped non-envelope data frame", nil)
		return
	}
	env, err := envelope.Deserialize(string(raw))
	if err != nil {
		b.logger.Warning("dropped malformed envelope", map[string]any{"err": err.Error()})
		return
	}
	if env.Expired(time.Now()) {
		b.logger.Warning("dropped expired envelope", nil)
		return
	}
	if !b.addressing.Admit(env) {
		b.logger.Warning("dropped envelope failing admission", nil)
		return
	}
	b.events.fireMessage(env)
}

// CloseAsync requests a graceful close: it sends Close on the command
// channel, waits up to CloseDrainTimeout for the command transport to drain,
// then closes the data channel only. The command channel and peer
// connection survive, ready for a later OpenAsync to reopen.
func (b *Base) CloseAsync() error {
	return b.closeInternal(true)
}

// closeInternal performs a soft close: it closes the data channel only,
// retaining the command channel and the underlying peer connection so a
// subsequent OpenAsync can recreate just the data channel without
// renegotiating ICE.
func (b *Base) closeInternal(notify bool) error {
	state := b.State()
	if state != StateOpen {
		return newErr(KindStateViolation, "CloseAsync", fmt.Errorf("state is %s, want %s", state, StateOpen))
	}

	b.transitionTo(StateClosing)

	if notify {
		b.sendCommand(tokenClose)
	}

	b.drainBeforeClose()
	b.closeDataTransport()

	b.transitionTo(StateClosed)
	b.stopAuditor()
	return nil
}

// drainBeforeClose polls the command transport's buffered amount until it
// reaches zero or CloseDrainTimeout elapses, giving the outstanding Close
// token a chance to leave the local SCTP send queue before the data channel
// is torn down.
func (b *Base) drainBeforeClose() {
	b.chMu.Lock()
	command := b.command
	b.chMu.Unlock()
	if command == nil {
		return
	}

	deadline := time.Now().Add(b.cfg.CloseDrainTimeout)
	ticker := time.NewTicker(b.cfg.CloseDrainPoll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if command.BufferedAmount() == 0 {
			return
		}
		<-ticker.C
	}
}

// closeDataTransport closes and drops the data transport, leaving the
// command transport and peer connection alive. isStable is cleared so a
// later reopen's stability recompute re-fires the transition to Open
// instead of finding the channel already marked stable.
func (b *Base) closeDataTransport() {
	b.chMu.Lock()
	data := b.data
	b.data = nil
	b.isStable = false
	b.chMu.Unlock()
	if data != nil {
		_ = data.Close()
	}
}

// Dispose tears the channel down unconditionally and moves it to the
// terminal Disposed state. It is idempotent and safe from any state.
func (b *Base) Dispose() {
	b.chMu.Lock()
	if b.state == StateDisposed {
		b.chMu.Unlock()
		return
	}
	b.state = StateDisposing
	b.chMu.Unlock()

	b.events.fireStateChange(StateDisposing)

	b.stopHeartbeatInternal()
	b.stopAuditor()
	b.cancelSignallingTimer(true)
	b.sendCommand(tokenDispose)
	b.releasePeerConnection()

	b.chMu.Lock()
	b.state = StateDisposed
	b.chMu.Unlock()

	b.events.fireStateChange(StateDisposed)
	b.events.fireDispose()
}
