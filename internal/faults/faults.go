// Package faults defines the error taxonomy shared by all Foreman
// operations. Callers classify failures with errors.Is against the exported
// sentinels; the transport layer maps them to status codes.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState means the operation is not valid for the item's
	// current status or qa_status.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden means the actor lacks the role or project membership the
	// operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict means a concurrency constraint was violated, e.g. the
	// single-active-testing-session rule.
	ErrConflict = errors.New("conflict")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransient means storage or delivery failed in a retryable way.
	ErrTransient = errors.New("transient failure")
)

// InvalidState wraps ErrInvalidState with a formatted message.
func InvalidState(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}

// Forbidden wraps ErrForbidden with a formatted message.
func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Transient wraps an underlying storage/delivery error as ErrTransient,
// keeping the cause reachable through errors.Is.
func Transient(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), err, ErrTransient)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

func IsInvalidState(err error) bool { return errors.Is(err, ErrInvalidState) }
func IsForbidden(err error) bool    { return errors.Is(err, ErrForbidden) }
func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsTransient(err error) bool    { return errors.Is(err, ErrTransient) }
