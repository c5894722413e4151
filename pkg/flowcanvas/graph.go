package flowcanvas

import "slices"

// Edge is a directed connection from Source to Target.
type Edge struct {
	Source string
	Target string
}

// Graph is an immutable snapshot of a Store.
// Mutating the Store after Snapshot never changes a Graph already taken.
type Graph struct {
	id         string
	nodes      map[string]Node
	order      []string
	edges      []Edge
	successors map[string][]string
}

// ID returns the identity of the store the snapshot was taken from.
func (g Graph) ID() string { return g.id }

// Len returns the number of nodes.
func (g Graph) Len() int { return len(g.order) }

// Node returns the node with id.
func (g Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodesOfKind returns the nodes of kind in insertion order.
func (g Graph) NodesOfKind(kind Kind) []Node {
	var nodes []Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.kind == kind {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Edges returns all edges in insertion order.
func (g Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Successors returns the targets of edges leaving id.
func (g Graph) Successors(id string) []string {
	return slices.Clone(g.successors[id])
}

// HasPath reports whether a directed path of at least one edge leads from one node to another.
func (g Graph) HasPath(from, to string) bool {
	if _, ok := g.nodes[from]; !ok {
		return false
	}
	return computeReachable(from, g.successors)[to]
}

// computeReachable returns all nodes reachable from start by one or more edges.
func computeReachable(start string, successors map[string][]string) map[string]bool {
	reachable := make(map[string]bool)
	queue := slices.Clone(successors[start])
	for _, next := range queue {
		reachable[next] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range successors[current] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}
	return reachable
}
