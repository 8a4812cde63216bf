package envelope

import "encoding/json"

// MessageType is the exact, case-sensitive wire tag for a Message payload.
type MessageType string

// Wire tags. PascalCase, no aliases.
const (
	TypeOffer     MessageType = "Offer"
	TypeAnswer    MessageType = "Answer"
	TypeRejection MessageType = "Rejection"
	TypeCandidate MessageType = "Candidate"
	TypeBroadcast MessageType = "Broadcast"
	TypeRelay     MessageType = "Relay"
)

// Message is the tagged-union payload carried by an Envelope. Each variant
// implements it; Type returns the exact wire tag for that variant.
type Message interface {
	Type() MessageType
	isMessage()
}

// Offer carries an SDP offer.
type Offer struct {
	SDP string `json:"sdp"`
}

func (Offer) Type() MessageType { return TypeOffer }
func (Offer) isMessage()        {}

// Answer carries an SDP answer.
type Answer struct {
	SDP string `json:"sdp"`
}

func (Answer) Type() MessageType { return TypeAnswer }
func (Answer) isMessage()        {}

// Rejection carries no data; it signals refusal of a pending offer.
type Rejection struct{}

func (Rejection) Type() MessageType { return TypeRejection }
func (Rejection) isMessage()        {}

// Candidate carries one ICE candidate. SDPMLineIndex is optional.
// A local SDPMid of "" is serialized as "0" for interop; on
// decode, an inbound SDPMid of "0" is normalized back to "".
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        string  `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func (Candidate) Type() MessageType { return TypeCandidate }
func (Candidate) isMessage()        {}

// MarshalJSON serializes an empty local SDPMid as the literal "0" for
// interop with counterparts that do not accept a null/empty sdpMid.
func (c Candidate) MarshalJSON() ([]byte, error) {
	mid := c.SDPMid
	if mid == "" {
		mid = "0"
	}
	type alias struct {
		Candidate     string  `json:"candidate"`
		SDPMid        string  `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	}
	return json.Marshal(alias{Candidate: c.Candidate, SDPMid: mid, SDPMLineIndex: c.SDPMLineIndex})
}

// Broadcast carries free text to be fanned out to every account channel
// except the sender's own.
type Broadcast struct {
	Text string `json:"text"`
}

func (Broadcast) Type() MessageType { return TypeBroadcast }
func (Broadcast) isMessage()        {}

// Relay carries free text addressed to a specific receiver address.
type Relay struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

func (Relay) Type() MessageType { return TypeRelay }
func (Relay) isMessage()        {}
