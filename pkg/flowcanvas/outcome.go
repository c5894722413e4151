package flowcanvas

import "time"

// State is a step of the run state machine.
//
//	idle -> validating -> invoking -> completing -> succeeded
//	             \-> invalid -> failed     \-> faulted -> failed
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateInvalid    State = "invalid"
	StateInvoking   State = "invoking"
	StateFaulted    State = "faulted"
	StateCompleting State = "completing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is the terminal result of a run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome describes a finished run.
type Outcome struct {
	RunID   string
	GraphID string
	// Pipeline is the pipeline the run executed, zero if validation failed
	// before one could be resolved.
	Pipeline Pipeline
	Status   Status
	// Transitions lists every state the run entered, starting with StateIdle.
	Transitions []State
	// Output is the model output written to the graph; empty on failure.
	Output string
	// Err is the failure reason; nil on success.
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether the run completed and committed its output.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSucceeded
}

// State returns the last state the run entered.
func (o Outcome) State() State {
	if len(o.Transitions) == 0 {
		return StateIdle
	}
	return o.Transitions[len(o.Transitions)-1]
}
