// Package grpc holds client-side gRPC helpers shared by ledger tools: dialing
// with trace propagation and waiting for a service's health check.
package grpc
