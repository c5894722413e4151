package flowcanvas

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the role a node plays in the workflow.
type Kind string

const (
	// KindSource holds the user prompt.
	KindSource Kind = "source"
	// KindTransform calls the model and records its output.
	KindTransform Kind = "transform"
	// KindSink displays the final result.
	KindSink Kind = "sink"
)

// Valid reports whether k is one of the three node kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSource, KindTransform, KindSink:
		return true
	}
	return false
}

// Field names a payload field that a Patch can replace.
type Field string

const (
	FieldText        Field = "text"
	FieldCredential  Field = "credential"
	FieldModelName   Field = "modelName"
	FieldOutput      Field = "output"
	FieldDisplayText Field = "displayText"
)

// Patch replaces whole payload fields. Keys must belong to the node's kind.
type Patch map[Field]string

// Position is canvas layout data. It has no effect on validation or execution.
type Position struct {
	X float64
	Y float64
}

// Node is an immutable workflow node. Edits return a new Node.
type Node struct {
	id       string
	kind     Kind
	payload  Payload
	position Position
}

// NewNode creates a node of kind with a fresh id.
// A nil initial payload yields the zero payload for kind.
func NewNode(kind Kind, initial Payload) (Node, error) {
	if !kind.Valid() {
		return Node{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	switch initial.(type) {
	case nil:
		initial = zeroPayload(kind)
	case SourcePayload, TransformPayload, SinkPayload:
	default:
		return Node{}, fmt.Errorf("%w: payload must be a value, got %T", ErrKindMismatch, initial)
	}
	if initial.Kind() != kind {
		return Node{}, fmt.Errorf("%w: %s payload for %s node", ErrKindMismatch, initial.Kind(), kind)
	}
	return Node{
		id:      fmt.Sprintf("%s-%s", kind, uuid.NewString()),
		kind:    kind,
		payload: initial,
	}, nil
}

// ID returns the node identifier.
func (n Node) ID() string { return n.id }

// Kind returns the node kind.
func (n Node) Kind() Kind { return n.kind }

// Payload returns the node payload.
func (n Node) Payload() Payload { return n.payload }

// Position returns the canvas position.
func (n Node) Position() Position { return n.position }

// WithPosition returns a copy of n placed at p.
func (n Node) WithPosition(p Position) Node {
	n.position = p
	return n
}

// UpdatePayload returns a copy of n with every field in patch replaced.
// A field the kind does not own fails with ErrInvalidPatch and nothing is applied.
func (n Node) UpdatePayload(patch Patch) (Node, error) {
	updated, err := n.payload.apply(patch)
	if err != nil {
		return n, err
	}
	n.payload = updated
	return n, nil
}
