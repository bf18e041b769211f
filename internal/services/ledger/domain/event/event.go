package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/encoding"
)

var (
	// ErrStreamIDRequired indicates a missing stream id.
	ErrStreamIDRequired = apperrors.New(apperrors.CodeStreamIDRequired, "stream id is required")
	// ErrTypeRequired indicates a missing event type.
	ErrTypeRequired = apperrors.New(apperrors.CodeEventTypeRequired, "event type is required")
	// ErrTypeUnknown indicates an unregistered event type.
	ErrTypeUnknown = apperrors.New(apperrors.CodeEventTypeUnknown, "event type is not registered")
	// ErrPayloadInvalid indicates a payload that cannot be hashed or fails validation.
	ErrPayloadInvalid = apperrors.New(apperrors.CodeEventPayloadInvalid, "event payload is invalid")
)

// Type identifies the event type string, e.g. "business.created".
type Type string

// Payload is implemented by every value that can be appended to a stream.
// The value must also be JSON serializable.
type Payload interface {
	EventType() Type
}

// Raw carries an already encoded payload, as received over the wire.
type Raw struct {
	Type Type
	Data json.RawMessage
}

// EventType implements Payload.
func (r Raw) EventType() Type { return r.Type }

// MarshalJSON returns Data unchanged so canonical hashing sees the original document.
func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r.Data) == 0 {
		return nil, errors.New("raw payload is empty")
	}
	return r.Data, nil
}

// Event is one recorded fact. Once appended its identity, version, payload,
// and hashes never change.
type Event struct {
	ID             string
	StreamID       string
	Version        uint64
	Type           Type
	Timestamp      time.Time
	PayloadJSON    []byte
	Hash           string
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string
}

// Clone returns a copy that shares no mutable memory with e.
func (e Event) Clone() Event {
	if e.PayloadJSON != nil {
		e.PayloadJSON = append([]byte(nil), e.PayloadJSON...)
	}
	return e
}

// CloneAll copies a slice of events.
func CloneAll(events []Event) []Event {
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// Decode unmarshals the payload of e into a value of type P.
func Decode[P any](e Event) (P, error) {
	var p P
	if err := json.Unmarshal(e.PayloadJSON, &p); err != nil {
		return p, apperrors.WrapWithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"decode event payload",
			map[string]string{apperrors.MetaStreamID: e.StreamID, apperrors.MetaEventType: string(e.Type)},
			err,
		)
	}
	return p, nil
}

// Prepare builds the pending form of an event: trimmed stream id, type,
// canonical payload JSON, and content hash. Version, timestamp, and chain
// fields are left for the store.
func Prepare(streamID string, payload Payload) (Event, error) {
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return Event{}, ErrStreamIDRequired
	}
	if payload == nil {
		return Event{}, apperrors.WithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"event payload is required",
			map[string]string{apperrors.MetaStreamID: streamID},
		)
	}
	typ := Type(strings.TrimSpace(string(payload.EventType())))
	if typ == "" {
		return Event{}, ErrTypeRequired
	}
	canonical, err := encoding.CanonicalJSON(payload)
	if err != nil {
		return Event{}, apperrors.WrapWithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"event payload cannot be serialized deterministically",
			map[string]string{apperrors.MetaStreamID: streamID, apperrors.MetaEventType: string(typ), apperrors.MetaReason: err.Error()},
			err,
		)
	}
	return Event{
		StreamID:    streamID,
		Type:        typ,
		PayloadJSON: canonical,
		Hash:        encoding.HashBytes(canonical),
	}, nil
}
