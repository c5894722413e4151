// Package notify carries user-facing run notifications from the engine to
// whatever presentation layer is listening.
//
// The engine only emits a notification when a run fails; a successful run
// is signalled by the updated sink node itself.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification for display.
type Severity string

// Severities.
const (
	SeverityError Severity = "error"
	SeverityInfo  Severity = "info"
)

// Notification is a message for the user about a run.
type Notification struct {
	ID       string
	RunID    string
	GraphID  string
	Severity Severity
	// Category is the failure category name (structural, input, ...).
	Category string
	// Message is ready for display.
	Message string
	Time    time.Time
}

// New creates a notification with a fresh ID and the current time.
func New(severity Severity, runID, graphID, category, message string) Notification {
	return Notification{
		ID:       uuid.New().String(),
		RunID:    runID,
		GraphID:  graphID,
		Severity: severity,
		Category: category,
		Message:  message,
		Time:     time.Now().UTC(),
	}
}

// Notifier receives notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) error { return nil })

// ErrBusClosed is returned when notifying through a closed Bus.
var ErrBusClosed = errors.New("notification bus closed")
