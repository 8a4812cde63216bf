package meshnode

// Command channel protocol tokens. The command channel never carries
// envelopes; data does. Keeping liveness traffic off the data channel
// means a stalled application payload never masks a dead link.
const (
	tokenPing    = "Ping"
	tokenPong    = "Pong"
	tokenClose   = "Close"
	tokenDispose = "Dispose"
)

// handleCommandMessage dispatches a single command-channel frame.
func (b *Base) handleCommandMessage(raw []byte) {
	switch string(raw) {
	case tokenPing:
		b.sendCommand(tokenPong)
	case tokenPong:
		b.completeHeartbeat()
	case tokenClose:
		go b.handleRemoteClose()
	case tokenDispose:
		go b.Dispose()
	default:
		b.logger.Warning("unknown command token", map[string]any{"token": string(raw)})
	}
}

// sendCommand writes a single token to the command channel, ignoring
// transport errors from a channel that is mid-teardown.
func (b *Base) sendCommand(token string) {
	b.chMu.Lock()
	cmd := b.command
	b.chMu.Unlock()
	if cmd == nil || !cmd.IsOpen() {
		return
	}
	b.auditMu.Lock()
	a := b.cmdAuditor
	b.auditMu.Unlock()
	b.auditRecord(a, len(token))
	_ = cmd.Send([]byte(token))
}

// handleRemoteClose reacts to the peer initiating a graceful close: it
// mirrors closeAsync locally without re-sending the Close token, per the
// "closeAsync(notify=false)" semantics.
func (b *Base) handleRemoteClose() {
	b.closeInternal(false)
}
