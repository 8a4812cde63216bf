package meshnode

import (
	"github.com/1ureka/meshnode/internal/account"
	"github.com/1ureka/meshnode/internal/envelope"
	"github.com/1ureka/meshnode/internal/logging"
)

// Addressing is the specialization point NodeChannel and AccountChannel
// implement (component E): envelope addressing and admission rules differ
// between the two, everything else in Base is shared.
type Addressing interface {
	// LocalParty is the sender field this channel stamps on outbound envelopes.
	LocalParty() envelope.Party
	// RemoteParty is the receiver field this channel stamps on outbound envelopes.
	RemoteParty() envelope.Party
	// Admit validates the sender addressing of an inbound data-channel
	// envelope. Base checks expiry before calling it; signatures are not
	// checked.
	Admit(env envelope.Envelope) bool
	// LogFields contributes this channel kind's structured logging context.
	LogFields() logging.Fields
}

// NodeKey identifies a node channel: the remote signer address.
type NodeKey account.Address

// AccountKey identifies an account channel: the pair of account address and
// signer address — one account may be reachable through multiple devices.
type AccountKey struct {
	Account account.Address
	Signer  account.Address
}
