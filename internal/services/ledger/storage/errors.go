package storage

import (
	"errors"
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/eventledger/internal/platform/errors"
	"github.com/louisbranch/eventledger/internal/services/ledger/storage/integrity"
)

var (
	// ErrNotFound indicates a requested persistence record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrConcurrencyConflict indicates the stream moved past the expected version.
	ErrConcurrencyConflict = apperrors.New(apperrors.CodeStreamConcurrency, "stream concurrency conflict")
	// ErrIntegrityViolation indicates a stored event no longer reproduces its hashes.
	ErrIntegrityViolation = apperrors.New(apperrors.CodeStreamIntegrity, "stream integrity violation")
)

// ConcurrencyConflict builds the error returned when expected != actual.
func ConcurrencyConflict(streamID string, expected, actual uint64) error {
	return apperrors.WithMetadata(
		apperrors.CodeStreamConcurrency,
		fmt.Sprintf("stream %s: expected version %d, actual %d", streamID, expected, actual),
		map[string]string{
			apperrors.MetaStreamID:        streamID,
			apperrors.MetaExpectedVersion: strconv.FormatUint(expected, 10),
			apperrors.MetaActualVersion:   strconv.FormatUint(actual, 10),
		},
	)
}

// IntegrityViolation converts a chain verification failure into the domain error.
// Errors that are not *integrity.Violation are returned unchanged.
func IntegrityViolation(err error) error {
	var violation *integrity.Violation
	if !errors.As(err, &violation) {
		return err
	}
	return apperrors.WrapWithMetadata(
		apperrors.CodeStreamIntegrity,
		violation.Error(),
		map[string]string{
			apperrors.MetaStreamID: violation.StreamID,
			apperrors.MetaVersion:  strconv.FormatUint(violation.Version, 10),
			apperrors.MetaReason:   violation.Reason,
		},
		violation,
	)
}

// ViolationVersion returns the offending version carried by an integrity
// error, falling back to the Version metadata of errors rebuilt from a remote
// status.
func ViolationVersion(err error) (uint64, bool) {
	var violation *integrity.Violation
	if errors.As(err, &violation) {
		return violation.Version, true
	}
	if !apperrors.IsCode(err, apperrors.CodeStreamIntegrity) {
		return 0, false
	}
	version, parseErr := strconv.ParseUint(apperrors.GetMetadata(err)[apperrors.MetaVersion], 10, 64)
	if parseErr != nil {
		return 0, false
	}
	return version, true
}

// IsRetryable reports whether the caller may re-read and retry.
func IsRetryable(err error) bool {
	return apperrors.GetCode(err).Retryable()
}

// IsValidation reports whether err rejects the caller's input.
func IsValidation(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.CodeStreamIDRequired,
		apperrors.CodeEventPayloadInvalid,
		apperrors.CodeEventTypeRequired,
		apperrors.CodeEventTypeUnknown:
		return true
	default:
		return false
	}
}
