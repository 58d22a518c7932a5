// Package errs provides the error type shared by every conversion stage.
//
// Issues that do not stop a conversion are recorded on an issues.Tracker.
// Everything that does stop one is returned as an *errs.Error, so callers can
// decide what to do with the partial output without importing the stage that
// failed:
//
//	if errs.IsResolution(err) {
//	    // the descriptor or an input file could not be fetched
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises a fatal error.
type Kind int

const (
	KindUnknown    Kind = iota
	KindStructural      // descriptor or input shape is unusable
	KindValidation      // a non-recoverable validation error
	KindResolution      // a resource could not be fetched or parsed
	KindStore           // the quad store failed
	KindParse           // malformed CSV or RDF input
	KindIO              // output could not be written
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindValidation:
		return "validation"
	case KindResolution:
		return "resolution"
	case KindStore:
		return "store"
	case KindParse:
		return "parse"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is the single fatal error type returned by the conversion pipelines.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
// A nil cause returns nil.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsStructural reports whether err is a structural descriptor or input error.
func IsStructural(err error) bool {
	return KindOf(err) == KindStructural
}

// IsValidation reports whether err is a fatal validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsResolution reports whether err was caused by resource resolution.
func IsResolution(err error) bool {
	return KindOf(err) == KindResolution
}

// IsStore reports whether err was raised by the quad store.
func IsStore(err error) bool {
	return KindOf(err) == KindStore
}

// IsParse reports whether err was caused by malformed input.
func IsParse(err error) bool {
	return KindOf(err) == KindParse
}

// IsFatal reports whether err carries a kind that terminates a conversion.
func IsFatal(err error) bool {
	return KindOf(err) != KindUnknown
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
