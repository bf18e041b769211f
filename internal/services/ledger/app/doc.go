// Package server hosts the ledger gRPC service.
//
// The server owns the store for its lifetime: it opens the configured backend,
// wraps it with tracing, registers ledger.v1.LedgerService plus gRPC health,
// and closes the store once serving stops.
package server
