// Package errors defines the error kinds surfaced by the delta sync core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it with errors.As
// without string-matching messages.
type Kind string

const (
	// KindConfig marks bad or missing backend configuration.
	KindConfig Kind = "config"

	// KindNotInitialized marks a baseline store used before Initialize.
	KindNotInitialized Kind = "not_initialized"

	// KindIO marks a filesystem, bucket, or database I/O failure.
	KindIO Kind = "io"

	// KindParse marks a malformed NDJSON line or non-decodable payload.
	KindParse Kind = "parse"

	// KindDepthExceeded marks record nesting deeper than the fingerprint bound.
	KindDepthExceeded Kind = "depth_exceeded"

	// KindValidation is reserved for upstream use; the core never raises it.
	KindValidation Kind = "validation"

	// KindCancelled marks cancellation observed at a suspension point.
	KindCancelled Kind = "cancelled"
)

// Error is the typed error carried through the cycle. Message is
// human-readable; Cause, if present, is the underlying error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ConfigError) match any *Error of that kind,
// regardless of message or cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stderrors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func newKind(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Sentinel values for errors.Is comparisons; Message is ignored by Is.
var (
	// ConfigError — bad or missing backend configuration.
	ConfigError = newKind(KindConfig, "config error")

	// NotInitialized — baseline store used before Initialize.
	NotInitialized = newKind(KindNotInitialized, "store not initialized")

	// IOError — filesystem, bucket, or database I/O failure.
	IOError = newKind(KindIO, "io error")

	// ParseErrorSentinel — malformed NDJSON line or non-decodable payload.
	ParseErrorSentinel = newKind(KindParse, "parse error")

	// DepthExceeded — record nesting depth exceeds the fingerprint bound.
	DepthExceeded = newKind(KindDepthExceeded, "max nesting depth exceeded")

	// ValidationFailure — reserved for upstream use; never raised by the core.
	ValidationFailure = newKind(KindValidation, "validation failure")

	// Cancelled — cancellation observed at a suspension point.
	Cancelled = newKind(KindCancelled, "cancelled")
)

// Config builds a ConfigError-kind error with a specific message.
func Config(msg string, cause error) error {
	return &Error{Kind: KindConfig, Message: msg, Cause: cause}
}

// NotInit builds a NotInitialized-kind error with a specific message.
func NotInit(msg string) error {
	return &Error{Kind: KindNotInitialized, Message: msg}
}

// IO builds an IO-kind error wrapping cause.
func IO(msg string, cause error) error {
	return &Error{Kind: KindIO, Message: msg, Cause: cause}
}

// Parse builds a ParseError-kind error naming the offending line prefix.
func Parse(msg string, cause error) error {
	return &Error{Kind: KindParse, Message: msg, Cause: cause}
}

// Depth builds a DepthExceeded-kind error.
func Depth(msg string) error {
	return &Error{Kind: KindDepthExceeded, Message: msg}
}

// CancelledErr builds a Cancelled-kind error wrapping ctx.Err() or similar.
func CancelledErr(cause error) error {
	return &Error{Kind: KindCancelled, Message: "cancelled", Cause: cause}
}

// As is a convenience wrapper over errors.As for *Error.
func As(err error, kind Kind) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
