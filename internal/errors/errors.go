package errors

import (
	stdErrors "errors"
	"fmt"
)

// Operation identifies the logical operation producing a contextual error.
type Operation string

const (
	// OperationLoopConstruct denotes loop construction from a candidate stack.
	OperationLoopConstruct Operation = "timeline.loop.construct"
	// OperationLoopMembership denotes loop membership evaluation.
	OperationLoopMembership Operation = "timeline.loop.membership"
	// OperationIdentifierParse denotes execution identifier parsing.
	OperationIdentifierParse Operation = "execution.identifier.parse"
	// OperationHistoryFetch denotes execution history retrieval.
	OperationHistoryFetch Operation = "history.fetch"
	// OperationHistoryDecode denotes execution history decoding.
	OperationHistoryDecode Operation = "history.decode"
	// OperationHistoryCache denotes history cache access.
	OperationHistoryCache Operation = "history.cache"
	// OperationReportRender denotes report rendering.
	OperationReportRender Operation = "report.render"
)

// Sentinel describes a stable error code shared across packages.
type Sentinel string

// Error returns the sentinel code string.
func (sentinel Sentinel) Error() string {
	return string(sentinel)
}

// Code exposes the sentinel code string.
func (sentinel Sentinel) Code() string {
	return string(sentinel)
}

// OperationError annotates an error with the operation and subject that produced it.
type OperationError struct {
	operation Operation
	subject   string
	err       error
	message   string
}

// Error implements the error interface.
func (operationError OperationError) Error() string {
	if len(operationError.message) > 0 {
		if len(operationError.subject) == 0 {
			return fmt.Sprintf("%s: %s", operationError.operation, operationError.message)
		}
		return fmt.Sprintf("%s[%s]: %s", operationError.operation, operationError.subject, operationError.message)
	}
	if len(operationError.subject) == 0 {
		return fmt.Sprintf("%s: %v", operationError.operation, operationError.err)
	}
	return fmt.Sprintf("%s[%s]: %v", operationError.operation, operationError.subject, operationError.err)
}

// Unwrap exposes the underlying error chain.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the originating operation identifier.
func (operationError OperationError) Operation() Operation {
	return operationError.operation
}

// Subject returns the domain subject (typically an execution identifier) related to the error.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code surfaces the sentinel code of the wrapped error when present.
func (operationError OperationError) Code() string {
	if coder, found := findSentinel(operationError.err); found {
		return coder.Code()
	}
	return ""
}

// Message exposes the formatted message when provided via WrapMessage.
func (operationError OperationError) Message() string {
	return operationError.message
}

// Wrap constructs an OperationError combining the provided metadata with the base sentinel.
func Wrap(operation Operation, subject string, sentinel Sentinel, detail error) error {
	if len(sentinel) == 0 {
		return OperationError{operation: operation, subject: subject, err: detail}
	}
	baseError := error(sentinel)
	if detail != nil {
		baseError = fmt.Errorf("%w: %w", sentinel, detail)
	}
	return OperationError{operation: operation, subject: subject, err: baseError}
}

// WrapMessage constructs an OperationError combining the provided metadata with a formatted message.
func WrapMessage(operation Operation, subject string, sentinel Sentinel, message string) error {
	if len(message) == 0 {
		return Wrap(operation, subject, sentinel, nil)
	}
	return OperationError{operation: operation, subject: subject, err: fmt.Errorf("%w: %s", sentinel, message), message: message}
}

func findSentinel(err error) (Sentinel, bool) {
	if err == nil {
		return "", false
	}
	var sentinel Sentinel
	if stdErrors.As(err, &sentinel) {
		return sentinel, true
	}
	return "", false
}

var (
	// ErrEmptyLoop indicates a loop was constructed from an empty candidate stack.
	ErrEmptyLoop Sentinel = "empty_loop"
	// ErrUnsupportedMembershipSubject indicates loop membership was evaluated against an unsupported value.
	ErrUnsupportedMembershipSubject Sentinel = "unsupported_membership_subject"
	// ErrMalformedExecutionIdentifier indicates an execution reference could not be parsed.
	ErrMalformedExecutionIdentifier Sentinel = "malformed_execution_identifier"
	// ErrHistoryFetchFailed indicates the execution history could not be retrieved.
	ErrHistoryFetchFailed Sentinel = "history_fetch_failed"
	// ErrHistoryDecodeFailed indicates the execution history payload could not be decoded.
	ErrHistoryDecodeFailed Sentinel = "history_decode_failed"
	// ErrCacheUnavailable indicates the history cache could not be opened or accessed.
	ErrCacheUnavailable Sentinel = "cache_unavailable"
	// ErrReportRenderFailed indicates a report could not be rendered.
	ErrReportRenderFailed Sentinel = "report_render_failed"
)
