// Package apperr defines the structured error shape shared by every
// component of the gateway, per the error taxonomy in the gateway design
// (§7): {code, message, details}.
package apperr

import (
	"errors"
	"fmt"
)

// Error is the structured error every component raises. It carries enough
// to render the gateway's standard JSON error envelope without the HTTP
// layer needing to know anything about what went wrong internally.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// wrapped is the original error, kept for logging but never serialized.
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.wrapped }

// WithDetail returns a copy of e with an additional detail key set.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches code/message to an underlying error, preserving it for
// %w-style unwrapping and logging.
func Wrap(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// As extracts an *Error from err's chain, returning nil if none is present.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Taxonomy constructors, one per code in the gateway's error table.

func BadRequest(message string) *Error { return New(400, message) }

func Unauthorized(message string) *Error { return New(401, message) }

// InsufficientFunds is raised when the billing hold step returns
// amount_held = null or when the billing service answers 402. The caller
// supplies the message; every such error carries error_type
// "payment_required".
func InsufficientFunds(message string) *Error {
	return New(402, message).WithDetail("error_type", "payment_required")
}

func Forbidden(message string) *Error { return New(403, message) }

func NotFound(message string) *Error { return New(404, message) }

func Timeout(message string) *Error { return New(408, message) }

func Internal(message string, err error) *Error {
	if err == nil {
		return New(500, message)
	}
	return Wrap(500, message, err).WithDetail("error", err.Error())
}

func Unavailable(message string, err error) *Error {
	if err == nil {
		return New(503, message)
	}
	return Wrap(503, message, err).WithDetail("error", err.Error())
}

// FromHTTPStatus maps an upstream HTTP status code to the gateway's own
// taxonomy, used by provider drivers when an upstream call fails outright.
func FromHTTPStatus(status int, message string, details map[string]any) *Error {
	e := New(status, message)
	if status < 400 || status >= 600 {
		e.Code = 502
	}
	e.Details = details
	return e
}
