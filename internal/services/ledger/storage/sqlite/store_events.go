package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/domain/event"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = `stream_id, version, event_id, event_type, timestamp, payload_json,
	event_hash, prev_hash, chain_hash, signature_key_id, signature`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Append implements storage.EventStore.
func (s *Store) Append(ctx context.Context, streamID string, expectedVersion uint64, payload event.Payload) (event.Event, error) {
	events, err := s.AppendBatch(ctx, streamID, expectedVersion, payload)
	if err != nil {
		return event.Event{}, err
	}
	return events[0], nil
}

// AppendBatch implements storage.EventStore.
func (s *Store) AppendBatch(ctx context.Context, streamID string, expectedVersion uint64, payloads ...event.Payload) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(payloads) == 0 {
		return nil, apperrors.WithMetadata(
			apperrors.CodeEventPayloadInvalid,
			"at least one payload is required",
			map[string]string{apperrors.MetaStreamID: streamID},
		)
	}
	pending, err := s.sealer.Prepare(streamID, payloads)
	if err != nil {
		return nil, err
	}
	streamID = pending[0].StreamID

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	actual, headHash, err := head(ctx, tx, streamID)
	if err != nil {
		return nil, err
	}
	if actual != expectedVersion {
		return nil, storage.ConcurrencyConflict(streamID, expectedVersion, actual)
	}
	sealed, err := s.sealer.Seal(pending, actual, headHash)
	if err != nil {
		return nil, err
	}

	for _, evt := range sealed {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.StreamID,
			int64(evt.Version),
			evt.ID,
			string(evt.Type),
			toMillis(evt.Timestamp),
			evt.PayloadJSON,
			evt.Hash,
			evt.PrevHash,
			evt.ChainHash,
			evt.SignatureKeyID,
			evt.Signature,
		); err != nil {
			if isConstraintError(err) {
				_ = tx.Rollback()
				current, verr := s.StreamVersion(ctx, streamID)
				if verr != nil {
					return nil, fmt.Errorf("append event: %w", err)
				}
				return nil, storage.ConcurrencyConflict(streamID, expectedVersion, current)
			}
			return nil, fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sealed, nil
}

func head(ctx context.Context, q queryer, streamID string) (uint64, string, error) {
	var (
		version   int64
		chainHash string
	)
	err := q.QueryRowContext(ctx,
		`SELECT version, chain_hash FROM events WHERE stream_id = ? ORDER BY version DESC LIMIT 1`,
		streamID,
	).Scan(&version, &chainHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("load stream head: %w", err)
	}
	return uint64(version), chainHash, nil
}

// ReadStream implements storage.EventStore.
func (s *Store) ReadStream(ctx context.Context, streamID string, fromVersion, toVersion uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return nil, event.ErrStreamIDRequired
	}
	if fromVersion == 0 {
		fromVersion = 1
	}
	if toVersion != 0 && fromVersion > toVersion {
		return []event.Event{}, nil
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE stream_id = ? AND version >= ?`
	args := []any{streamID, int64(fromVersion)}
	if toVersion != 0 {
		query += ` AND version <= ?`
		args = append(args, int64(toVersion))
	}
	query += ` ORDER BY version ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// StreamVersion implements storage.EventStore.
func (s *Store) StreamVersion(ctx context.Context, streamID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return 0, event.ErrStreamIDRequired
	}
	var version sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("get stream version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return uint64(version.Int64), nil
}

// VerifyIntegrity implements storage.EventStore.
func (s *Store) VerifyIntegrity(ctx context.Context, streamID string) (storage.VerifyResult, error) {
	events, err := s.ReadStream(ctx, streamID, 0, 0)
	if err != nil {
		return storage.VerifyResult{}, err
	}
	return s.sealer.Verify(strings.TrimSpace(streamID), events)
}

// ListStreams implements storage.EventStore.
func (s *Store) ListStreams(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT stream_id FROM events ORDER BY stream_id`)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stream id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}
	return ids, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		evt       event.Event
		version   int64
		eventType string
		timestamp int64
	)
	if err := rows.Scan(
		&evt.StreamID,
		&version,
		&evt.ID,
		&eventType,
		&timestamp,
		&evt.PayloadJSON,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&evt.SignatureKeyID,
		&evt.Signature,
	); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	evt.Version = uint64(version)
	evt.Type = event.Type(eventType)
	evt.Timestamp = fromMillis(timestamp)
	return evt, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
