package storage

import (
	"context"
	"fmt"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
)

// BuildFunc produces the payload to append on top of currentVersion.
type BuildFunc func(ctx context.Context, currentVersion uint64) (event.Payload, error)

// AppendWithRetry re-reads the stream version and rebuilds the payload after
// each ErrConcurrencyConflict, up to attempts tries. Other errors return at once.
func AppendWithRetry(ctx context.Context, store EventStore, streamID string, attempts int, build BuildFunc) (event.Event, error) {
	if store == nil {
		return event.Event{}, fmt.Errorf("event store is required")
	}
	if build == nil {
		return event.Event{}, fmt.Errorf("build function is required")
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}
		version, err := store.StreamVersion(ctx, streamID)
		if err != nil {
			return event.Event{}, err
		}
		payload, err := build(ctx, version)
		if err != nil {
			return event.Event{}, err
		}
		evt, err := store.Append(ctx, streamID, version, payload)
		if err == nil {
			return evt, nil
		}
		if !IsRetryable(err) {
			return event.Event{}, err
		}
		lastErr = err
	}
	return event.Event{}, fmt.Errorf("append after %d attempts: %w", attempts, lastErr)
}
