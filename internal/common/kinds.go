package common

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping. Every error surfaced
// to callers carries exactly one kind plus a human-readable detail.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation marks client-fixable input errors.
	KindValidation
	// KindConfiguration marks missing setup, e.g. an unlinked Drive folder.
	KindConfiguration
	// KindUpstream marks failed calls to external services.
	KindUpstream
	// KindNotFound marks missing entities.
	KindNotFound
)

// Error is a kinded error with a display-ready detail string.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.cause }

// ValidationError builds a KindValidation error.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Detail: fmt.Sprintf(format, args...)}
}

// OperationFailed builds a KindUpstream error capturing the upstream
// response body for diagnostics.
func OperationFailed(cause error, body string) *Error {
	detail := "an operation has failed"
	if body != "" {
		detail = fmt.Sprintf("an operation has failed, cause: %s", body)
	} else if cause != nil {
		detail = fmt.Sprintf("an operation has failed, cause: %v", cause)
	}
	return &Error{Kind: KindUpstream, Detail: detail, cause: cause}
}

// NotFoundError builds a KindNotFound error.
func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Detail: fmt.Sprintf(format, args...), cause: ErrorNotFound}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
// Bare ErrorNotFound maps to KindNotFound.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	if errors.Is(err, ErrorNotFound) {
		return KindNotFound
	}
	return KindInternal
}
