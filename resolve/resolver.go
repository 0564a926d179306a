package resolve

import (
	"github.com/castellan/castellan/core"
)

// Resolver computes the complete installation order for a module and its
// transitive dependency closure, failing fast on missing or circular
// dependencies. The graph is rebuilt per Resolve call rather than maintained
// incrementally across calls.
type Resolver struct {
	graph *Graph
}

// NewResolver creates a resolver with an empty graph.
func NewResolver() *Resolver {
	return &Resolver{graph: NewGraph()}
}

// Resolve walks the dependency closure of target through the available
// descriptor map and returns the names in load order (dependencies first).
//
// The walk keeps a "currently visiting" set so cycles are caught during
// discovery with an ordered, readable path; Kahn's own detection in the
// graph backstops it. Missing modules surface as *core.DependencyError
// before any ordering is attempted.
func (r *Resolver) Resolve(target string, available map[string]core.Descriptor) ([]string, error) {
	r.graph.Clear()

	visiting := make(map[string]struct{})
	var path []string
	if err := r.build(target, available, visiting, path); err != nil {
		return nil, err
	}

	return r.graph.TopologicalSort()
}

func (r *Resolver) build(name string, available map[string]core.Descriptor, visiting map[string]struct{}, path []string) error {
	desc, ok := available[name]
	if !ok {
		return &core.DependencyError{Module: name}
	}

	if _, ok := visiting[name]; ok {
		// Trim the path to the first occurrence so the cycle reads
		// first-repeated -> ... -> name.
		for i, p := range path {
			if p == name {
				return &core.CircularDependencyError{Cycle: append(append([]string(nil), path[i:]...), name)}
			}
		}
		return &core.CircularDependencyError{Cycle: append(append([]string(nil), path...), name)}
	}

	// AddNode merges on re-add, so nodes first seen as bare dependencies
	// still pick up their own edges when the walk reaches them.
	r.graph.AddNode(name, desc.Dependencies)

	visiting[name] = struct{}{}
	path = append(path, name)

	for _, dep := range desc.Dependencies {
		if _, ok := available[dep]; !ok {
			return &core.DependencyError{Module: name, MissingDeps: []string{dep}}
		}
		if err := r.build(dep, available, visiting, path); err != nil {
			return err
		}
	}

	delete(visiting, name)
	return nil
}

// Graph exposes the most recently built graph for diagnostics and
// reverse-dependency queries.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// Dependents returns the modules in the last resolved graph that directly
// depend on the given name.
func (r *Resolver) Dependents(name string) []string {
	return r.graph.GetDependents(name)
}
