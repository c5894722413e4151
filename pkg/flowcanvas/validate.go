package flowcanvas

// Pipeline binds the three nodes of a validated graph in execution order.
type Pipeline struct {
	SourceID    string
	TransformID string
	SinkID      string
}

// NodeIDs returns the pipeline node ids in execution order.
func (p Pipeline) NodeIDs() []string {
	return []string{p.SourceID, p.TransformID, p.SinkID}
}

// Validate checks that g can be executed and returns its pipeline.
// It reports the first failed check as a *ValidationError.
//
// Checks (in order):
//  1. Exactly one source node
//  2. Exactly one transform node
//  3. Exactly one sink node
//  4. A directed path from source to transform and from transform to sink
//  5. Source text is not empty
//  6. Transform credential is not empty
//  7. Transform model name is not empty
//
// Validate reads g only.
func Validate(g Graph) (Pipeline, error) {
	source, err := exactlyOne(g, KindSource, ReasonMissingSource)
	if err != nil {
		return Pipeline{}, err
	}
	transform, err := exactlyOne(g, KindTransform, ReasonMissingTransform)
	if err != nil {
		return Pipeline{}, err
	}
	sink, err := exactlyOne(g, KindSink, ReasonMissingSink)
	if err != nil {
		return Pipeline{}, err
	}

	if !g.HasPath(source.id, transform.id) || !g.HasPath(transform.id, sink.id) {
		return Pipeline{}, &ValidationError{Reason: ReasonDisconnected}
	}

	if source.payload.(SourcePayload).Text == "" {
		return Pipeline{}, &ValidationError{Reason: ReasonEmptyInput, NodeID: source.id}
	}
	tp := transform.payload.(TransformPayload)
	if tp.Credential == "" {
		return Pipeline{}, &ValidationError{Reason: ReasonMissingCredential, NodeID: transform.id}
	}
	if tp.ModelName == "" {
		return Pipeline{}, &ValidationError{Reason: ReasonMissingModel, NodeID: transform.id}
	}

	return Pipeline{SourceID: source.id, TransformID: transform.id, SinkID: sink.id}, nil
}

func exactlyOne(g Graph, kind Kind, reason Reason) (Node, error) {
	nodes := g.NodesOfKind(kind)
	if len(nodes) != 1 {
		return Node{}, &ValidationError{Reason: reason, Count: len(nodes)}
	}
	return nodes[0], nil
}
