// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Stream errors
	CodeStreamIDRequired  Code = "STREAM_ID_REQUIRED"
	CodeStreamConcurrency Code = "STREAM_CONCURRENCY_CONFLICT"
	CodeStreamIntegrity   Code = "STREAM_INTEGRITY_VIOLATION"

	// Event errors
	CodeEventPayloadInvalid Code = "EVENT_PAYLOAD_INVALID"
	CodeEventTypeRequired   Code = "EVENT_TYPE_REQUIRED"
	CodeEventTypeUnknown    Code = "EVENT_TYPE_UNKNOWN"

	// Projection errors
	CodeProjectionUnhandledType Code = "PROJECTION_UNHANDLED_EVENT_TYPE"
	CodeProjectionFoldFailed    Code = "PROJECTION_FOLD_FAILED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeStreamIDRequired,
		CodeEventPayloadInvalid,
		CodeEventTypeRequired,
		CodeEventTypeUnknown:
		return codes.InvalidArgument

	// Aborted - optimistic concurrency; the client re-reads and retries
	case CodeStreamConcurrency:
		return codes.Aborted

	// DataLoss - the stored chain no longer reproduces
	case CodeStreamIntegrity:
		return codes.DataLoss

	// FailedPrecondition - replay cannot proceed with the given handlers
	case CodeProjectionUnhandledType,
		CodeProjectionFoldFailed:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}

// Retryable reports whether a caller may safely retry an operation that failed
// with this code after re-reading current state.
func (c Code) Retryable() bool {
	return c == CodeStreamConcurrency
}
