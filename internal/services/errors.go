package services

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks caller-contract violations: submitting a choice for
	// the wrong provider or path, mutating a terminal state, restarting a
	// non-terminal path. These indicate an integration bug, never a runtime
	// condition, and must not be swallowed.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration (missing API keys,
	// unknown provider ids).
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups for records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrProvider marks expected provider failures (HTTP errors, rate
	// limits); surfaced to the user with a message, never as a crash.
	ErrProvider = errors.New("provider error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Error carries a classified failure with enough context for both logs and
// user-facing display.
type Error struct {
	Marker    error
	Component string
	Operation string
	Message   string
	Cause     error
}

// Wrap builds a classified error. The marker should be one of the exported
// sentinels above; a nil marker defaults to ErrTransient.
func Wrap(marker error, component, operation, message string, cause error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     cause,
	}
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if e.Marker != nil {
		parts = append(parts, e.Marker.Error())
	}
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	if e.Operation != "" {
		parts = append(parts, e.Operation)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "service failure"
	}
	if e.Cause != nil {
		return detail + ": " + e.Cause.Error()
	}
	return detail
}

// Unwrap exposes both the classification marker and the underlying cause so
// errors.Is works against either.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// ErrorDetails summarizes a classified error for presentation.
type ErrorDetails struct {
	Component string
	Operation string
	Message   string
	Cause     error
}

// Details extracts presentation details from an error chain. For errors that
// never passed through Wrap, Message falls back to the raw error text.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var classified *Error
	if errors.As(err, &classified) {
		message := classified.Message
		if message == "" && classified.Cause != nil {
			message = classified.Cause.Error()
		}
		return ErrorDetails{
			Component: classified.Component,
			Operation: classified.Operation,
			Message:   message,
			Cause:     classified.Cause,
		}
	}
	return ErrorDetails{Message: err.Error(), Cause: err}
}
