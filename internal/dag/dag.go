package dag

import (
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node with the given ID. Adding an existing ID does nothing.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge records that dependent depends on dep. Both nodes must exist and
// must differ.
func (g *Graph) AddEdge(dep, dependent string) error {
	if dep == dependent {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", dep, dep)
	}
	from, ok := g.nodes[dep]
	if !ok {
		return fmt.Errorf("source node not found: %s", dep)
	}
	to, ok := g.nodes[dependent]
	if !ok {
		return fmt.Errorf("destination node not found: %s", dependent)
	}
	to.deps[dep] = from
	from.dependents[dependent] = to
	return nil
}

// Dependencies returns the sorted IDs the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedIDs(n.deps), nil
}

// Order returns every node after all of its dependencies. Among nodes that
// are ready at the same time the smallest ID comes first, so a graph
// without edges is returned in sorted order. A cycle yields *CycleError
// naming the nodes that could not be ordered.
func (g *Graph) Order() ([]string, error) {
	pending := make(map[string]int, len(g.nodes))
	var ready []string
	for id, n := range g.nodes {
		pending[id] = len(n.deps)
		if len(n.deps) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := false
		for _, next := range sortedIDs(g.nodes[id].dependents) {
			pending[next]--
			if pending[next] == 0 {
				ready = append(ready, next)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) < len(g.nodes) {
		var stuck []string
		for id, n := range pending {
			if n > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return order, &CycleError{Nodes: stuck}
	}
	return order, nil
}

// DetectCycles returns a *CycleError if the graph cannot be ordered.
func (g *Graph) DetectCycles() error {
	_, err := g.Order()
	return err
}

func sortedIDs(m map[string]*node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
