package integrity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/encoding"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

// GenesisHash is the PrevHash of version 1 in every stream.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Violation describes the first event that fails verification.
type Violation struct {
	StreamID string
	Version  uint64
	Reason   string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("stream %s: integrity violation at version %d: %s", v.StreamID, v.Version, v.Reason)
}

// EventHash hashes the stored payload bytes as they are. Payloads are
// canonicalized once at append, so any later byte change alters the hash.
func EventHash(evt event.Event) (string, error) {
	if len(evt.PayloadJSON) == 0 {
		return "", fmt.Errorf("payload is empty")
	}
	return encoding.HashBytes(evt.PayloadJSON), nil
}

// ChainHash computes the SHA-256 hash that links an event to its predecessor.
func ChainHash(evt event.Event, prevHash string) (string, error) {
	if strings.TrimSpace(evt.Hash) == "" {
		return "", fmt.Errorf("event hash is required")
	}
	if strings.TrimSpace(prevHash) == "" {
		return "", fmt.Errorf("previous hash is required")
	}
	envelope := map[string]string{
		"stream_id": evt.StreamID,
		"version":   strconv.FormatUint(evt.Version, 10),
		"event_id":  evt.ID,
		"type":      string(evt.Type),
		"timestamp": evt.Timestamp.UTC().Format(time.RFC3339Nano),
		"hash":      evt.Hash,
		"prev_hash": prevHash,
	}
	return encoding.ContentHash(envelope)
}

// Seal fills PrevHash, ChainHash, and, when keyring is non-nil, the signature
// fields of evt. Hash, ID, Version, and Timestamp must already be set.
func Seal(evt *event.Event, prevHash string, keyring *Keyring) error {
	if evt == nil {
		return fmt.Errorf("event is required")
	}
	chainHash, err := ChainHash(*evt, prevHash)
	if err != nil {
		return fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevHash
	evt.ChainHash = chainHash
	evt.Signature = ""
	evt.SignatureKeyID = ""
	if keyring != nil {
		sig, keyID, err := keyring.SignChainHash(evt.StreamID, chainHash)
		if err != nil {
			return fmt.Errorf("sign chain hash: %w", err)
		}
		evt.Signature = sig
		evt.SignatureKeyID = keyID
	}
	return nil
}

// Verifier walks one stream in ascending version order.
type Verifier struct {
	streamID string
	keyring  *Keyring
	prev     string
	next     uint64
}

// NewVerifier starts a verification walk at version 1.
func NewVerifier(streamID string, keyring *Keyring) *Verifier {
	return &Verifier{streamID: streamID, keyring: keyring, prev: GenesisHash, next: 1}
}

// Next checks evt against everything seen so far.
func (v *Verifier) Next(evt event.Event) error {
	fail := func(reason string) error {
		return &Violation{StreamID: v.streamID, Version: evt.Version, Reason: reason}
	}
	if evt.StreamID != v.streamID {
		return fail(fmt.Sprintf("event belongs to stream %q", evt.StreamID))
	}
	if evt.Version != v.next {
		return fail(fmt.Sprintf("expected version %d", v.next))
	}
	hash, err := EventHash(evt)
	if err != nil {
		return fail("payload hash: " + err.Error())
	}
	if hash != evt.Hash {
		return fail("payload hash mismatch")
	}
	if evt.PrevHash != v.prev {
		return fail("previous hash mismatch")
	}
	chainHash, err := ChainHash(evt, v.prev)
	if err != nil {
		return fail("chain hash: " + err.Error())
	}
	if chainHash != evt.ChainHash {
		return fail("chain hash mismatch")
	}
	if v.keyring != nil {
		if evt.Signature == "" {
			return fail("signature missing")
		}
		if err := v.keyring.VerifyChainHash(evt.StreamID, evt.ChainHash, evt.Signature, evt.SignatureKeyID); err != nil {
			return fail(err.Error())
		}
	}
	v.prev = evt.ChainHash
	v.next++
	return nil
}

// Head returns the chain hash of the last verified event, or GenesisHash.
func (v *Verifier) Head() string { return v.prev }

// Verified returns how many events passed.
func (v *Verifier) Verified() uint64 { return v.next - 1 }
