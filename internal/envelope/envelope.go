// Package envelope implements the wire envelope and its polymorphic
// payload: serialization, deserialization, and expiry/addressing helpers
// (component A).
package envelope

import (
	"time"

	"github.com/1ureka/meshnode/internal/account"
)

// Party identifies one side of an envelope: either the literal "node"
// marker (case-insensitive, see account.IsNodeMarker) or an account
// address, paired with the signer key that must have produced/received
// the signature.
type Party struct {
	Account string          `json:"account"`
	Signer  account.Address `json:"signer"`
}

// IsNode reports whether this party identifies a node rather than a user account.
func (p Party) IsNode() bool { return account.IsNodeMarker(p.Account) }

// Envelope is the outer message shape carrying metadata, addressing, and a
// tagged payload.
type Envelope struct {
	Timestamp int64   `json:"timestamp"`
	MaxAge    int32   `json:"maxAge"` // seconds
	Priority  int32   `json:"priority"`
	Sequence  int64   `json:"sequence"`
	Sender    Party   `json:"sender"`
	Receiver  Party   `json:"receiver"`
	Payload   Message `json:"payload"`
	Signature string  `json:"signature"`
}

// Expired reports whether the envelope has aged past MaxAge as of now.
func (e Envelope) Expired(now time.Time) bool {
	age := now.Unix() - e.Timestamp
	return age > int64(e.MaxAge)
}
