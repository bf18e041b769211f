package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/eventledger/internal/services/ledger/domain/replay"
)

// VersionedReader is the read side Project needs.
type VersionedReader interface {
	replay.Reader
	StreamVersion(ctx context.Context, streamID string) (uint64, error)
}

// Project replays streamID starting from a cached snapshot when one is
// usable, then caches the new head state. Snapshots are keyed by name and the
// unknown-type policy in opts, so callers must give each handler set its own
// name.
func Project[S any](ctx context.Context, reader VersionedReader, cache Cache, name, streamID string, handlers replay.Handlers[S], opts ...replay.Option) (replay.Result[S], error) {
	if reader == nil {
		return replay.Result[S]{}, replay.ErrReaderRequired
	}
	key := ProjectionKey(name, replay.PolicyOf(opts...))
	if key == "" {
		return replay.Result[S]{}, ErrProjectionRequired
	}
	if cache == nil {
		cache = Noop{}
	}
	current, err := reader.StreamVersion(ctx, streamID)
	if err != nil {
		return replay.Result[S]{}, err
	}

	snap, err := Load[S](ctx, cache, key, streamID, current)
	switch {
	case err == nil:
		opts = append(opts, replay.FromSnapshot(snap))
	case errors.Is(err, ErrSnapshotNotFound):
	default:
		return replay.Result[S]{}, fmt.Errorf("load snapshot: %w", err)
	}

	result, err := replay.Replay(ctx, reader, streamID, handlers, opts...)
	if err != nil {
		return result, err
	}
	if snap.Version > 0 && !result.FromSnapshot {
		// The cached entry no longer matches the chain.
		if err := cache.Invalidate(ctx, streamID, key); err != nil {
			return result, err
		}
	}
	if result.Version > 0 && (!result.FromSnapshot || result.Version != snap.Version) {
		if err := Save(ctx, cache, key, replay.Snapshot[S]{
			StreamID:  streamID,
			Version:   result.Version,
			ChainHash: result.ChainHash,
			State:     result.State,
		}); err != nil {
			return result, fmt.Errorf("save snapshot: %w", err)
		}
	}
	return result, nil
}
