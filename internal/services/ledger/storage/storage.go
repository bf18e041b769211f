package storage

import (
	"context"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

// VerifyResult summarizes a successful chain verification.
type VerifyResult struct {
	StreamID string
	// Verified counts the events checked; zero for a stream that does not exist.
	Verified uint64
	// HeadHash is the chain hash of the last event, or the genesis hash.
	HeadHash string
}

// EventReader is the read side used by replay and reporting tools.
type EventReader interface {
	// ReadStream returns events in [fromVersion, toVersion] in ascending order.
	// fromVersion 0 is treated as 1 and toVersion 0 means the stream head.
	// Unknown streams and empty ranges return an empty slice.
	ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error)
	// StreamVersion returns the highest version, or 0 if the stream does not exist.
	StreamVersion(ctx context.Context, streamID string) (uint64, error)
}

// EventStore owns the event stream boundary that drives replay; it is the
// source of truth for state reconstruction.
type EventStore interface {
	EventReader
	// Append records payload at expectedVersion+1 and returns the stored event.
	// It fails with ErrConcurrencyConflict when the stream head differs from
	// expectedVersion, leaving the stream unchanged.
	Append(ctx context.Context, streamID string, expectedVersion uint64, payload event.Payload) (event.Event, error)
	// AppendBatch records payloads as consecutive versions, all or nothing.
	AppendBatch(ctx context.Context, streamID string, expectedVersion uint64, payloads ...event.Payload) ([]event.Event, error)
	// VerifyIntegrity recomputes every hash of the stream in order and fails
	// with ErrIntegrityViolation at the first mismatch.
	VerifyIntegrity(ctx context.Context, streamID string) (VerifyResult, error)
	// ListStreams returns every stream id in lexical order.
	ListStreams(ctx context.Context) ([]string, error)
}

// Closer is implemented by stores that hold external resources.
type Closer interface {
	Close() error
}
