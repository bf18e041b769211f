// Package checkpoint caches replay snapshots outside the event store.
//
// The store owns truth; a cache owns only an index from stream and projection
// key to (version, chain hash, state). Entries are dropped whenever the stream no
// longer reaches the cached version, and replay re-checks the chain hash
// before trusting one. State must round-trip through JSON.
package checkpoint
