// Package errors classifies workflow failures and renders them for the user.
//
// Every failure a run can produce falls into one of four categories:
//   - Structural: the graph shape cannot be executed (missing or duplicate node
//     kinds, no path from source to sink)
//   - Input: the graph is well formed but a required field is empty
//   - Concurrency: a run is already in flight for the same graph
//   - Adapter: the model-inference service rejected or failed the request
//
// Errors raised elsewhere in flowcanvas wrap one of the category sentinels so
// callers can branch with errors.Is without knowing the concrete type.
package errors

import (
	"errors"
	"fmt"
)

// Category sentinels. Concrete errors wrap exactly one of these.
var (
	// ErrStructural marks graph shape failures raised by the validator.
	ErrStructural = errors.New("structural error")

	// ErrInput marks empty required fields raised by the validator.
	ErrInput = errors.New("input error")

	// ErrConcurrency marks runs rejected because another run is pending.
	ErrConcurrency = errors.New("concurrency error")

	// ErrAdapter marks failures of the external model invocation.
	ErrAdapter = errors.New("adapter error")
)

// Category represents which part of the system a failure belongs to.
type Category int

const (
	// CategoryUnknown is returned for errors that wrap no category sentinel.
	CategoryUnknown Category = iota

	// CategoryStructural indicates the graph shape is not executable.
	CategoryStructural

	// CategoryInput indicates a required node field is empty.
	CategoryInput

	// CategoryConcurrency indicates the run was rejected before any I/O.
	CategoryConcurrency

	// CategoryAdapter indicates the external call failed.
	CategoryAdapter
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryStructural:
		return "structural"
	case CategoryInput:
		return "input"
	case CategoryConcurrency:
		return "concurrency"
	case CategoryAdapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// Sentinel returns the category sentinel error, or nil for CategoryUnknown.
func (c Category) Sentinel() error {
	switch c {
	case CategoryStructural:
		return ErrStructural
	case CategoryInput:
		return ErrInput
	case CategoryConcurrency:
		return ErrConcurrency
	case CategoryAdapter:
		return ErrAdapter
	default:
		return nil
	}
}

// CategorizedError attaches a category to an error that does not carry one.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category is the failure category.
	Category Category

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s)", e.Context, e.Err, e.Category)
	}
	return fmt.Sprintf("%s (category: %s)", e.Err, e.Category)
}

// Unwrap returns the underlying error and the category sentinel.
func (e *CategorizedError) Unwrap() []error {
	if s := e.Category.Sentinel(); s != nil {
		return []error{e.Err, s}
	}
	return []error{e.Err}
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Categorize reports which category err belongs to.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	switch {
	case errors.Is(err, ErrStructural):
		return CategoryStructural
	case errors.Is(err, ErrInput):
		return CategoryInput
	case errors.Is(err, ErrConcurrency):
		return CategoryConcurrency
	case errors.Is(err, ErrAdapter):
		return CategoryAdapter
	}

	return CategoryUnknown
}

// UserMessage renders err as the message shown on the notification channel.
// Returns an empty string for a nil error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch Categorize(err) {
	case CategoryStructural:
		return fmt.Sprintf("The workflow needs exactly one input, one LLM and one output node connected in order (%s)", err)
	case CategoryInput:
		return fmt.Sprintf("Please fill all required fields in the nodes (%s)", err)
	case CategoryConcurrency:
		return "The workflow is already running"
	case CategoryAdapter:
		return fmt.Sprintf("Failed to get a response from the API (%s)", err)
	default:
		return fmt.Sprintf("Workflow failed: %s", err)
	}
}
