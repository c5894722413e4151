package flowcanvas

import (
	"fmt"
	"slices"
)

// Payload is the kind-specific data of a node.
// It is implemented only by SourcePayload, TransformPayload and SinkPayload.
type Payload interface {
	Kind() Kind
	apply(Patch) (Payload, error)
}

// SourcePayload is the prompt text entered by the user.
type SourcePayload struct {
	Text string
}

// TransformPayload configures the model call and records its last output.
type TransformPayload struct {
	Credential string
	ModelName  string
	Output     string
}

// SinkPayload is the text shown to the user after a run.
type SinkPayload struct {
	DisplayText string
}

// Kind implements Payload.
func (SourcePayload) Kind() Kind { return KindSource }

// Kind implements Payload.
func (TransformPayload) Kind() Kind { return KindTransform }

// Kind implements Payload.
func (SinkPayload) Kind() Kind { return KindSink }

func (p SourcePayload) apply(patch Patch) (Payload, error) {
	if err := checkFields(KindSource, patch, FieldText); err != nil {
		return nil, err
	}
	if v, ok := patch[FieldText]; ok {
		p.Text = v
	}
	return p, nil
}

func (p TransformPayload) apply(patch Patch) (Payload, error) {
	if err := checkFields(KindTransform, patch, FieldCredential, FieldModelName, FieldOutput); err != nil {
		return nil, err
	}
	if v, ok := patch[FieldCredential]; ok {
		p.Credential = v
	}
	if v, ok := patch[FieldModelName]; ok {
		p.ModelName = v
	}
	if v, ok := patch[FieldOutput]; ok {
		p.Output = v
	}
	return p, nil
}

func (p SinkPayload) apply(patch Patch) (Payload, error) {
	if err := checkFields(KindSink, patch, FieldDisplayText); err != nil {
		return nil, err
	}
	if v, ok := patch[FieldDisplayText]; ok {
		p.DisplayText = v
	}
	return p, nil
}

func checkFields(kind Kind, patch Patch, owned ...Field) error {
	for f := range patch {
		if !slices.Contains(owned, f) {
			return fmt.Errorf("%w: %s node has no field %q", ErrInvalidPatch, kind, f)
		}
	}
	return nil
}

func zeroPayload(kind Kind) Payload {
	switch kind {
	case KindSource:
		return SourcePayload{}
	case KindTransform:
		return TransformPayload{}
	default:
		return SinkPayload{}
	}
}
