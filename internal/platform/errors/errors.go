package errors

import (
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Domain is the ErrorInfo domain attached to ledger errors on the wire.
const Domain = "github.com/louisbranch/eventledger"

// Metadata keys shared by error constructors and message templates.
const (
	MetaStreamID        = "StreamID"
	MetaExpectedVersion = "ExpectedVersion"
	MetaActualVersion   = "ActualVersion"
	MetaVersion         = "Version"
	MetaEventType       = "EventType"
	MetaReason          = "Reason"
)

// RetryDelay is the backoff hint sent with retryable statuses.
const RetryDelay = 50 * time.Millisecond

// Error is a ledger error carrying a stable code and template metadata.
type Error struct {
	Code     Code
	Message  string            // internal, for logs
	Metadata map[string]string // template values for the user message
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so package sentinels work with
// errors.Is regardless of message or metadata.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error with no metadata. Used for sentinels.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error whose metadata feeds the i18n templates.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap returns an error with a cause and no metadata.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata returns an error with both metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// ToGRPCStatus builds the wire status. The status message keeps the internal
// text; userMessage travels as a LocalizedMessage. Retryable codes also carry
// a RetryInfo hint.
func (e *Error) ToGRPCStatus(locale string, userMessage string) error {
	grpcCode := e.Code.GRPCCode()
	details := []protoadapt.MessageV1{
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  locale,
			Message: userMessage,
		},
	}
	if e.Code.Retryable() {
		details = append(details, &errdetails.RetryInfo{RetryDelay: durationpb.New(RetryDelay)})
	}

	st, err := status.New(grpcCode, e.Message).WithDetails(details...)
	if err != nil {
		return status.New(grpcCode, e.Message).Err()
	}
	return st.Err()
}
