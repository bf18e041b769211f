// Package metadata defines the request headers the ledger gRPC surface reads
// and echoes.
//
// Every unary call leaves with a request id, generated when the caller did not
// send one, and the id is attached to the active span so traces and logs can be
// joined.
package metadata
