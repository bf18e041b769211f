// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values prevents drift between entry points and
// makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a ledger peer.
const GRPCDial = 2 * time.Second

// Shutdown limits how long the gRPC server waits for in-flight requests
// during graceful shutdown before forcing a stop.
const Shutdown = 5 * time.Second

// Maintenance is the default overall budget for a maintenance run.
const Maintenance = 10 * time.Minute
