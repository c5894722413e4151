// Package history records the outcome of every workflow run.
//
// Only run outcomes are stored. Graphs themselves live for the editing
// session and are never written here.
package history

import (
	"errors"
	"time"
)

// Store persists run records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record, overwriting any record with the same RunID.
	Save(rec Record) error

	// Load retrieves a record. Returns ErrNotFound if absent.
	Load(runID string) (Record, error)

	// List returns all records for a graph in the order they were first saved.
	// Returns an empty slice (not error) if the graph has no records.
	List(graphID string) ([]Record, error)

	// Delete removes a record. Returns nil if it doesn't exist.
	Delete(runID string) error

	// DeleteGraph removes every record for a graph.
	DeleteGraph(graphID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Status values stored in Record.Status.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Record is the stored outcome of one run.
type Record struct {
	RunID   string
	GraphID string
	Status  string
	// Category is the failure category name; empty on success.
	Category string
	// Error is the failure text; empty on success.
	Error     string
	Model     string
	Output    string
	StartedAt time.Time
	Duration  time.Duration
	// Sequence is assigned by the store on first save.
	Sequence int
}

// Sentinel errors for history operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("run record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")

	// ErrRunIDRequired indicates Save was called without a RunID.
	ErrRunIDRequired = errors.New("run ID required")
)
