package flowcanvas

import (
	"errors"
	"fmt"

	fgerrors "github.com/randalmurphal/flowcanvas/pkg/flowcanvas/errors"
)

// Sentinel errors for node and store editing.
var (
	// ErrNodeNotFound indicates an operation referenced a node id the store does not hold.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidEdge indicates an edge that connects a node to itself.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrUnknownKind indicates a kind other than source, transform or sink.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrKindMismatch indicates a payload that belongs to a different kind.
	ErrKindMismatch = errors.New("payload does not match node kind")

	// ErrInvalidPatch indicates a patch naming a field the node kind does not own.
	ErrInvalidPatch = errors.New("invalid patch")

	// ErrNodeInUse indicates removal of a node captured by a pending run.
	ErrNodeInUse = errors.New("node is in use by a pending run")
)

// Sentinel errors for execution.
var (
	// ErrAlreadyRunning indicates a run is already pending for the graph.
	ErrAlreadyRunning = fmt.Errorf("%w: run already pending", fgerrors.ErrConcurrency)

	// ErrPipelineMismatch indicates the caller's pipeline no longer matches the graph.
	ErrPipelineMismatch = fmt.Errorf("%w: pipeline does not match graph", fgerrors.ErrStructural)

	// ErrNilStore indicates Run was called without a store.
	ErrNilStore = errors.New("store cannot be nil")
)

// Validation reason sentinels. A *ValidationError matches exactly one.
var (
	ErrMissingSource     = errors.New("missing source")
	ErrMissingTransform  = errors.New("missing transform")
	ErrMissingSink       = errors.New("missing sink")
	ErrDisconnected      = errors.New("disconnected")
	ErrEmptyInput        = errors.New("empty input")
	ErrMissingCredential = errors.New("missing credential")
	ErrMissingModel      = errors.New("missing model")
)

// Reason identifies why a graph failed validation.
type Reason int

const (
	ReasonMissingSource Reason = iota + 1
	ReasonMissingTransform
	ReasonMissingSink
	ReasonDisconnected
	ReasonEmptyInput
	ReasonMissingCredential
	ReasonMissingModel
)

var reasonSentinels = map[Reason]error{
	ReasonMissingSource:     ErrMissingSource,
	ReasonMissingTransform:  ErrMissingTransform,
	ReasonMissingSink:       ErrMissingSink,
	ReasonDisconnected:      ErrDisconnected,
	ReasonEmptyInput:        ErrEmptyInput,
	ReasonMissingCredential: ErrMissingCredential,
	ReasonMissingModel:      ErrMissingModel,
}

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonMissingSource:
		return "MissingSource"
	case ReasonMissingTransform:
		return "MissingTransform"
	case ReasonMissingSink:
		return "MissingSink"
	case ReasonDisconnected:
		return "Disconnected"
	case ReasonEmptyInput:
		return "EmptyInput"
	case ReasonMissingCredential:
		return "MissingCredential"
	case ReasonMissingModel:
		return "MissingModel"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Structural reports whether r concerns graph shape rather than field contents.
func (r Reason) Structural() bool {
	return r >= ReasonMissingSource && r <= ReasonDisconnected
}

// ValidationError describes the first check a graph failed.
type ValidationError struct {
	// Reason is the failed check.
	Reason Reason
	// NodeID is the offending node, empty for count and path failures.
	NodeID string
	// Count is the number of nodes of the required kind, for Missing* kind reasons.
	Count int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return fmt.Sprintf("validation failed: %s at node %s", e.Reason, e.NodeID)
	case e.Reason <= ReasonMissingSink:
		return fmt.Sprintf("validation failed: %s (found %d, want 1)", e.Reason, e.Count)
	default:
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
}

// Unwrap returns the reason sentinel and its category sentinel.
func (e *ValidationError) Unwrap() []error {
	category := fgerrors.ErrInput
	if e.Reason.Structural() {
		category = fgerrors.ErrStructural
	}
	if s, ok := reasonSentinels[e.Reason]; ok {
		return []error{s, category}
	}
	return []error{category}
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node the operation targeted.
	NodeID string
	// Op is the operation that failed (e.g., "update", "connect").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}
