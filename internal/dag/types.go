package dag

import (
	"fmt"
	"strings"
)

// Graph is a set of named nodes and the dependencies between them.
type Graph struct {
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
}

// node is un-exported to enforce interaction with the graph via string IDs.
type node struct {
	id string
	// deps holds the nodes this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the nodes that depend on this node (successors).
	dependents map[string]*node
}

// CycleError reports nodes that can never be ordered because they depend on
// each other.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between %s", strings.Join(e.Nodes, ", "))
}
