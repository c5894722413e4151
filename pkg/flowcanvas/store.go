package flowcanvas

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Store is the mutable workflow graph edited by the user.
// All methods are safe for concurrent use.
type Store struct {
	id string

	mu     sync.RWMutex
	nodes  map[string]Node
	order  []string
	edges  []Edge
	pinned map[string]int

	// guard admits one run at a time.
	guard *semaphore.Weighted
}

// NewStore creates an empty graph store with a fresh identity.
func NewStore() *Store {
	return &Store{
		id:     uuid.NewString(),
		nodes:  make(map[string]Node),
		pinned: make(map[string]int),
		guard:  semaphore.NewWeighted(1),
	}
}

// ID returns the graph identity.
func (s *Store) ID() string { return s.id }

// AddNode creates a node of kind with an empty payload and returns its id.
func (s *Store) AddNode(kind Kind) (string, error) {
	return s.AddNodeAt(kind, Position{})
}

// AddNodeAt creates a node of kind at pos and returns its id.
func (s *Store) AddNodeAt(kind Kind, pos Position) (string, error) {
	n, err := NewNode(kind, nil)
	if err != nil {
		return "", err
	}
	n = n.WithPosition(pos)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.id] = n
	s.order = append(s.order, n.id)
	return n.id, nil
}

// UpdateNode replaces the payload fields named in patch.
// Either every field is applied or none is.
func (s *Store) UpdateNode(id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return &NodeError{NodeID: id, Op: "update", Err: ErrNodeNotFound}
	}
	updated, err := n.UpdatePayload(patch)
	if err != nil {
		return &NodeError{NodeID: id, Op: "update", Err: err}
	}
	s.nodes[id] = updated
	return nil
}

// MoveNode sets the canvas position of a node.
func (s *Store) MoveNode(id string, pos Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return &NodeError{NodeID: id, Op: "move", Err: ErrNodeNotFound}
	}
	s.nodes[id] = n.WithPosition(pos)
	return nil
}

// Connect adds an edge from source to target.
// Connecting an already connected pair is a no-op.
func (s *Store) Connect(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNodes("connect", source, target); err != nil {
		return err
	}
	if source == target {
		return &NodeError{NodeID: source, Op: "connect", Err: fmt.Errorf("%w: self loop", ErrInvalidEdge)}
	}
	e := Edge{Source: source, Target: target}
	if !slices.Contains(s.edges, e) {
		s.edges = append(s.edges, e)
	}
	return nil
}

// Disconnect removes the edge from source to target if present.
func (s *Store) Disconnect(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNodes("disconnect", source, target); err != nil {
		return err
	}
	s.edges = slices.DeleteFunc(s.edges, func(e Edge) bool {
		return e.Source == source && e.Target == target
	})
	return nil
}

// RemoveNode deletes a node together with every edge touching it.
// A node captured by a pending run cannot be removed and yields ErrNodeInUse.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return &NodeError{NodeID: id, Op: "remove", Err: ErrNodeNotFound}
	}
	if s.pinned[id] > 0 {
		return &NodeError{NodeID: id, Op: "remove", Err: ErrNodeInUse}
	}
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.edges = slices.DeleteFunc(s.edges, func(e Edge) bool {
		return e.Source == id || e.Target == id
	})
	return nil
}

// Node returns the current value of a node.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok
}

// Snapshot returns an immutable copy of the graph.
func (s *Store) Snapshot() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successors := make(map[string][]string, len(s.order))
	for _, e := range s.edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
	}
	return Graph{
		id:         s.id,
		nodes:      maps.Clone(s.nodes),
		order:      slices.Clone(s.order),
		edges:      slices.Clone(s.edges),
		successors: successors,
	}
}

// requireNodes must be called with mu held.
func (s *Store) requireNodes(op string, ids ...string) error {
	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			return &NodeError{NodeID: id, Op: op, Err: ErrNodeNotFound}
		}
	}
	return nil
}

// runSlot is the single run admitted by a Store's guard.
type runSlot struct {
	store  *Store
	pinned []string
	once   sync.Once
}

// beginRun claims the run slot or fails with ErrAlreadyRunning.
// The slot must be released exactly once when the run ends.
func (s *Store) beginRun() (*runSlot, error) {
	if !s.guard.TryAcquire(1) {
		return nil, ErrAlreadyRunning
	}
	return &runSlot{store: s}, nil
}

// pin protects the pipeline nodes from removal until release.
// It fails if any of them has been removed since the snapshot was taken.
func (r *runSlot) pin(p Pipeline) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := p.NodeIDs()
	if err := s.requireNodes("pin", ids...); err != nil {
		return err
	}
	for _, id := range ids {
		s.pinned[id]++
	}
	r.pinned = append(r.pinned, ids...)
	return nil
}

func (r *runSlot) release() {
	r.once.Do(func() {
		s := r.store
		s.mu.Lock()
		for _, id := range r.pinned {
			if s.pinned[id]--; s.pinned[id] <= 0 {
				delete(s.pinned, id)
			}
		}
		s.mu.Unlock()
		s.guard.Release(1)
	})
}

// commitRun writes output to the transform and sink in one step.
func (s *Store) commitRun(p Pipeline, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireNodes("commit", p.TransformID, p.SinkID); err != nil {
		return err
	}
	transform, err := s.nodes[p.TransformID].UpdatePayload(Patch{FieldOutput: output})
	if err != nil {
		return &NodeError{NodeID: p.TransformID, Op: "commit", Err: err}
	}
	sink, err := s.nodes[p.SinkID].UpdatePayload(Patch{FieldDisplayText: output})
	if err != nil {
		return &NodeError{NodeID: p.SinkID, Op: "commit", Err: err}
	}
	s.nodes[p.TransformID] = transform
	s.nodes[p.SinkID] = sink
	return nil
}
