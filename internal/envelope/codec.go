package envelope

import (
	"encoding/json"
	"fmt"
)

// DecodeError classifies why Deserialize failed.
type DecodeError struct {
	Kind string // BadFormat | UnknownKind | MissingPayload
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("envelope: %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func badFormat(err error) error      { return &DecodeError{Kind: "BadFormat", Err: err} }
func unknownKind(tag string) error   { return &DecodeError{Kind: "UnknownKind", Err: fmt.Errorf("unknown payload type %q", tag)} }
func missingPayload() error          { return &DecodeError{Kind: "MissingPayload", Err: fmt.Errorf("payload.type field is missing")} }

// wireEnvelope mirrors Envelope but leaves payload as raw JSON so the tag
// can be sniffed before picking a concrete Message type.
type wireEnvelope struct {
	Timestamp int64           `json:"timestamp"`
	MaxAge    int32           `json:"maxAge"`
	Priority  int32           `json:"priority"`
	Sequence  int64           `json:"sequence"`
	Sender    Party           `json:"sender"`
	Receiver  Party           `json:"receiver"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

type wirePayloadTag struct {
	Type MessageType `json:"type"`
}

// Serialize encodes an Envelope as a single-line JSON frame.
func Serialize(e Envelope) (string, error) {
	payload, tag, err := encodePayload(e.Payload)
	if err != nil {
		return "", err
	}

	out := struct {
		Timestamp int64           `json:"timestamp"`
		MaxAge    int32           `json:"maxAge"`
		Priority  int32           `json:"priority"`
		Sequence  int64           `json:"sequence"`
		Sender    Party           `json:"sender"`
		Receiver  Party           `json:"receiver"`
		Payload   json.RawMessage `json:"payload"`
		Signature string          `json:"signature"`
	}{
		Timestamp: e.Timestamp,
		MaxAge:    e.MaxAge,
		Priority:  e.Priority,
		Sequence:  e.Sequence,
		Sender:    e.Sender,
		Receiver:  e.Receiver,
		Payload:   payload,
		Signature: e.Signature,
	}
	_ = tag // kept only to document that encodePayload already wrote the tag into payload

	data, err := json.Marshal(out)
	if err != nil {
		return "", badFormat(err)
	}
	return string(data), nil
}

// IsEnvelope reports whether text is a well-formed envelope frame: valid
// JSON with a present payload.type field. It does not validate signatures
// or expiry.
func IsEnvelope(text string) bool {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return false
	}
	if len(w.Payload) == 0 {
		return false
	}
	var tag wirePayloadTag
	if err := json.Unmarshal(w.Payload, &tag); err != nil {
		return false
	}
	return tag.Type != ""
}

// Deserialize decodes a JSON envelope frame, exhaustively resolving the
// payload's type tag to a concrete Message variant. Unknown tags and
// missing tags are rejected at this boundary.
func Deserialize(text string) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return Envelope{}, badFormat(err)
	}
	if len(w.Payload) == 0 {
		return Envelope{}, missingPayload()
	}

	var tag wirePayloadTag
	if err := json.Unmarshal(w.Payload, &tag); err != nil {
		return Envelope{}, badFormat(err)
	}
	if tag.Type == "" {
		return Envelope{}, missingPayload()
	}

	msg, err := decodePayload(tag.Type, w.Payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Timestamp: w.Timestamp,
		MaxAge:    w.MaxAge,
		Priority:  w.Priority,
		Sequence:  w.Sequence,
		Sender:    w.Sender,
		Receiver:  w.Receiver,
		Payload:   msg,
		Signature: w.Signature,
	}, nil
}

// encodePayload marshals a Message into JSON with its "type" tag folded in.
func encodePayload(m Message) (json.RawMessage, MessageType, error) {
	if m == nil {
		return nil, "", badFormat(fmt.Errorf("envelope has nil payload"))
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, "", badFormat(err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, "", badFormat(err)
	}
	tagJSON, err := json.Marshal(m.Type())
	if err != nil {
		return nil, "", badFormat(err)
	}
	fields["type"] = tagJSON

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, "", badFormat(err)
	}
	return out, m.Type(), nil
}

// decodePayload resolves the exhaustive type tag to a concrete Message.
func decodePayload(tag MessageType, raw json.RawMessage) (Message, error) {
	switch tag {
	case TypeOffer:
		var v Offer
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, badFormat(err)
		}
		return v, nil

	case TypeAnswer:
		var v Answer
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, badFormat(err)
		}
		return v, nil

	case TypeRejection:
		return Rejection{}, nil

	case TypeCandidate:
		var v Candidate
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, badFormat(err)
		}
		if v.SDPMid == "0" {
			v.SDPMid = ""
		}
		return v, nil

	case TypeBroadcast:
		var v Broadcast
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, badFormat(err)
		}
		return v, nil

	case TypeRelay:
		var v Relay
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, badFormat(err)
		}
		return v, nil

	default:
		return nil, unknownKind(string(tag))
	}
}
