// Package storage defines the event store contract for the ledger.
//
// The store is the single source of truth for every stream: append with
// optimistic concurrency, ordered reads, and chain verification.
// Implementations live in subpackages (memory, sqlite).
//
// Common error types:
//   - ErrConcurrencyConflict: expected version did not match the stream
//   - ErrIntegrityViolation: stored events no longer reproduce their hashes
//   - ErrNotFound: requested record is missing
package storage
