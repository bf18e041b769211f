package storage

import (
	"fmt"
	"time"

	"github.com/louisbranch/eventledger/internal/platform/id"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
)

// Sealer holds the write-path policy shared by every backend: payload
// validation before any lock is taken, then identity, version, timestamp,
// and chain assignment once the stream head is known.
type Sealer struct {
	// Registry rejects unregistered types when set.
	Registry *event.Registry
	// Keyring signs chain hashes when set.
	Keyring *integrity.Keyring
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to id.NewID.
	NewID func() (string, error)
}

// Prepare canonicalizes and validates payloads for one stream.
func (s Sealer) Prepare(streamID string, payloads []event.Payload) ([]event.Event, error) {
	pending := make([]event.Event, 0, len(payloads))
	for _, payload := range payloads {
		evt, err := event.Prepare(streamID, payload)
		if err != nil {
			return nil, err
		}
		if s.Registry != nil {
			evt, err = s.Registry.ValidateForAppend(evt)
			if err != nil {
				return nil, err
			}
		}
		pending = append(pending, evt)
	}
	return pending, nil
}

// Seal stamps pending events as versions headVersion+1.. chained from headHash.
// An empty headHash means the stream is new.
func (s Sealer) Seal(pending []event.Event, headVersion uint64, headHash string) ([]event.Event, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	newID := s.NewID
	if newID == nil {
		newID = id.NewID
	}
	if headHash == "" {
		headHash = integrity.GenesisHash
	}

	ts := now().UTC().Truncate(time.Millisecond)
	sealed := make([]event.Event, len(pending))
	for i, evt := range pending {
		eventID, err := newID()
		if err != nil {
			return nil, fmt.Errorf("generate event id: %w", err)
		}
		evt.ID = eventID
		evt.Version = headVersion + uint64(i) + 1
		evt.Timestamp = ts
		if err := integrity.Seal(&evt, headHash, s.Keyring); err != nil {
			return nil, err
		}
		headHash = evt.ChainHash
		sealed[i] = evt
	}
	return sealed, nil
}

// Verify walks events with a fresh verifier and converts failures into
// ErrIntegrityViolation.
func (s Sealer) Verify(streamID string, events []event.Event) (VerifyResult, error) {
	v := integrity.NewVerifier(streamID, s.Keyring)
	for _, evt := range events {
		if err := v.Next(evt); err != nil {
			return VerifyResult{}, IntegrityViolation(err)
		}
	}
	return VerifyResult{StreamID: streamID, Verified: v.Verified(), HeadHash: v.Head()}, nil
}
