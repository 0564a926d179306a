// Package resolve computes deterministic load orders for modules from their
// declared dependencies. Graph holds the edges; Resolver builds a graph for
// one target module from an externally supplied descriptor map.
package resolve

import (
	"sort"
	"sync"

	"github.com/castellan/castellan/core"
)

// Graph is a directed "depends-on" graph over module names. Edges point from
// dependent to dependency. Every name appearing as a dependency is also
// registered as a node, so the sort always terminates cleanly.
//
// All operations are safe for concurrent use; a single mutex guards the
// node map and the cached sort result.
type Graph struct {
	mu     sync.Mutex
	nodes  map[string]map[string]struct{}
	cached []string
	dirty  bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]map[string]struct{}),
		dirty: true,
	}
}

// AddNode registers a node with its direct dependencies. Re-adding a node
// merges dependency sets rather than erroring. Dependencies not yet present
// are registered as nodes with empty edge sets. Invalidates any cached sort.
func (g *Graph) AddNode(name string, dependencies []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureNode(name)
	for _, dep := range dependencies {
		g.nodes[name][dep] = struct{}{}
		g.ensureNode(dep)
	}
	g.dirty = true
}

func (g *Graph) ensureNode(name string) {
	if _, ok := g.nodes[name]; !ok {
		g.nodes[name] = make(map[string]struct{})
	}
}

// RemoveNode deletes a node and strips it from every other node's dependency
// set. Dependents silently lose the edge; there is no cascading removal.
// No-op if the name is absent.
func (g *Graph) RemoveNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[name]; !ok {
		return
	}
	delete(g.nodes, name)
	for _, deps := range g.nodes {
		delete(deps, name)
	}
	g.dirty = true
}

// TopologicalSort returns the nodes ordered so that every dependency comes
// strictly before its dependents, using Kahn's algorithm with a FIFO ready
// queue. The result is cached until the next mutating call.
//
// Returns a *core.CircularDependencyError naming the never-emitted nodes
// when the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.dirty && g.cached != nil {
		return append([]string(nil), g.cached...), nil
	}

	// dependents[d] is the set of nodes whose in-degree drops when d is
	// emitted; inDegree[n] is the number of dependencies n still waits on.
	dependents := make(map[string][]string, len(g.nodes))
	inDegree := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		inDegree[name] = 0
	}
	for name, deps := range g.nodes {
		for dep := range deps {
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	// Sorted seeding and sorted dependent lists make the emitted order a
	// pure function of the graph, not of map iteration.
	queue := make([]string, 0, len(g.nodes))
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)
	for _, deps := range dependents {
		sort.Strings(deps)
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var stuck []string
		for name, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, &core.CircularDependencyError{Cycle: stuck}
	}

	g.cached = append([]string(nil), result...)
	g.dirty = false
	return result, nil
}

// GetDependencies returns a copy of a node's direct dependency set. Unknown
// names yield an empty set.
func (g *Graph) GetDependencies(name string) map[string]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]struct{}, len(g.nodes[name]))
	for dep := range g.nodes[name] {
		out[dep] = struct{}{}
	}
	return out
}

// GetDependents returns the names that directly depend on the given node.
func (g *Graph) GetDependents(name string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string
	for node, deps := range g.nodes {
		if _, ok := deps[name]; ok {
			out = append(out, node)
		}
	}
	return out
}

// HasNode reports whether the node is registered.
func (g *Graph) HasNode(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.nodes[name]
	return ok
}

// GetAllNodes returns every registered node name, in no particular order.
func (g *Graph) GetAllNodes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	return out
}

// Clear removes every node and invalidates the cache.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = make(map[string]map[string]struct{})
	g.cached = nil
	g.dirty = true
}
