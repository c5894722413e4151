// Package llm is the single point of contact with the model-inference service.
//
// A Client performs exactly one outbound request per Complete call and maps
// every failure onto one of three sentinels:
//
//	ErrUnauthorized       the credential was rejected
//	ErrUnavailable        the request did not produce a usable HTTP answer
//	ErrMalformedResponse  the answer lacked the expected completion field
//
// All three also match errors.ErrAdapter from the flowcanvas errors package.
package llm

import (
	"errors"
	"fmt"

	fgerrors "github.com/randalmurphal/flowcanvas/pkg/flowcanvas/errors"
)

// Sentinel errors for adapter failures.
var (
	// ErrUnauthorized indicates the service rejected the credential.
	ErrUnauthorized = errors.New("credential rejected")

	// ErrUnavailable indicates a network, transport or service failure.
	ErrUnavailable = errors.New("service unavailable")

	// ErrMalformedResponse indicates the response had no completion text.
	ErrMalformedResponse = errors.New("malformed response")
)

// Error wraps an adapter failure with the operation and HTTP status.
type Error struct {
	// Op is the operation that failed ("complete", "decode").
	Op string
	// Kind is one of ErrUnauthorized, ErrUnavailable, ErrMalformedResponse.
	Kind error
	// StatusCode is the HTTP status, zero if no response was received.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

// NewError creates an adapter error of the given kind.
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("llm %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the kind sentinel, the cause and the adapter category.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind, fgerrors.ErrAdapter}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
