// Package voxerr defines the sentinel errors shared across voxgate's core
// components. The HTTP layer maps these to status codes; storage errors are
// never wrapped into them and pass through unmodified.
package voxerr

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a command is issued while no engine
// session is active.
var ErrNotConnected = errors.New("engine not connected")

// ErrTimeout is returned when a background command's reply does not arrive
// within the configured bound.
var ErrTimeout = errors.New("command timed out")

// ErrNotFound is returned when no matching entity, route or rule exists.
var ErrNotFound = errors.New("not found")

// ValidationError reports a rejected write: an invalid pattern, an unknown
// action kind or a malformed rule. It is always detected synchronously at
// authoring time, never during evaluation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
