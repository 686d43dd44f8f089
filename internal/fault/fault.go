package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable machine-readable failure category.
type Kind string

const (
	Validation                Kind = "validation"
	Connection                Kind = "connection"
	Timeout                   Kind = "timeout"
	OrderNotFound             Kind = "order_not_found"
	OrderNotFillable          Kind = "order_not_fillable"
	InsufficientPrerequisite  Kind = "insufficient_prerequisite"
	AmbiguousSubmission       Kind = "ambiguous_submission"
	UnsupportedProgramVersion Kind = "unsupported_program_version"
	RateLimited               Kind = "rate_limited"
	Internal                  Kind = "internal"
)

// Error carries a failure kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. Context
// cancellation and deadline expiry are reclassified as Timeout so callers
// can tell a slow endpoint from a broken one.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = Timeout
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
