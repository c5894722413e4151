package errors

import "fmt"

// HTTPError represents a non-success HTTP response.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap ties HTTP failures to the adapter category.
func (e *HTTPError) Unwrap() error {
	return ErrAdapter
}
