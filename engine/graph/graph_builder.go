package graph

import "sync"

// GraphBuilderOption is a functional option for configuring a Graph.
// Use the With* functions to create options.
type GraphBuilderOption func(g *graph)

// WithCapacity pre-allocates arena space for n nodes, avoiding growth
// reallocations for scenes whose size is known up front.
//
// Parameters:
//   - n: expected node count
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithCapacity(n int) GraphBuilderOption {
	return func(g *graph) {
		if cap(g.nodes) < n {
			nodes := make([]node, len(g.nodes), n)
			copy(nodes, g.nodes)
			g.nodes = nodes
		}
	}
}

// WithRootTransform sets the root node's transform. The root cannot be
// mutated after construction, so this is the only way to move the world
// origin.
//
// Parameters:
//   - t: the root's transform
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithRootTransform(t Transform) GraphBuilderOption {
	return func(g *graph) {
		g.nodes[0].local = t
		g.nodes[0].world = t
	}
}

// NewGraph creates a graph seeded with the immutable root node at entity 0:
// identity transform, active and visible.
//
// Parameters:
//   - options: optional configuration
//
// Returns:
//   - Graph: the initialized graph
func NewGraph(options ...GraphBuilderOption) Graph {
	g := &graph{
		mu: &sync.RWMutex{},
		nodes: []node{{
			parent:  -1,
			local:   Identity(),
			world:   Identity(),
			active:  true,
			visible: true,
		}},
		fresh: true,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}
