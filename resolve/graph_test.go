package resolve_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/resolve"
)

// indexOf returns the position of name in order, failing the test when the
// name was never emitted.
func indexOf(t *testing.T, order []string, name string) int {
	t.Helper()
	for i, n := range order {
		if n == name {
			return i
		}
	}
	t.Fatalf("%q not in order %v", name, order)
	return -1
}

func TestGraphTopologicalSort_Chain(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b", "c"})
	g.AddNode("b", []string{"c"})
	g.AddNode("c", nil)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, 3)

	assert.Less(t, indexOf(t, order, "c"), indexOf(t, order, "b"))
	assert.Less(t, indexOf(t, order, "b"), indexOf(t, order, "a"))
}

func TestGraphTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("app", []string{"db", "cache"})
	g.AddNode("db", []string{"config"})
	g.AddNode("cache", []string{"config"})
	g.AddNode("config", nil)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, 4)

	assert.Equal(t, "config", order[0])
	assert.Less(t, indexOf(t, order, "db"), indexOf(t, order, "app"))
	assert.Less(t, indexOf(t, order, "cache"), indexOf(t, order, "app"))
}

func TestGraphTopologicalSort_Cycle(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", []string{"a"})

	_, err := g.TopologicalSort()
	var cycleErr *core.CircularDependencyError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Cycle)
}

func TestGraphTopologicalSort_SelfDependency(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"a"})

	_, err := g.TopologicalSort()
	var cycleErr *core.CircularDependencyError
	require.True(t, errors.As(err, &cycleErr))
	assert.Contains(t, cycleErr.Cycle, "a")
}

func TestGraphTopologicalSort_PartialCycle(t *testing.T) {
	t.Parallel()

	// An acyclic island next to a cycle: the error names only the stuck nodes.
	g := resolve.NewGraph()
	g.AddNode("standalone", nil)
	g.AddNode("x", []string{"y"})
	g.AddNode("y", []string{"x"})

	_, err := g.TopologicalSort()
	var cycleErr *core.CircularDependencyError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"x", "y"}, cycleErr.Cycle)
	assert.NotContains(t, cycleErr.Cycle, "standalone")
}

func TestGraphTopologicalSort_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *resolve.Graph {
		g := resolve.NewGraph()
		g.AddNode("app", []string{"db", "cache", "queue"})
		g.AddNode("db", []string{"config"})
		g.AddNode("cache", []string{"config"})
		g.AddNode("queue", []string{"config"})
		g.AddNode("config", nil)
		g.AddNode("standalone", nil)
		return g
	}

	// Ties resolve alphabetically, so the order is a function of the graph
	// alone and identical across rebuilds.
	want := []string{"config", "standalone", "cache", "db", "queue", "app"}
	for i := 0; i < 20; i++ {
		order, err := build().TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, want, order, "rebuild %d", i)
	}
}

func TestGraphAddNode_MergesOnReAdd(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("a", []string{"c"})

	deps := g.GetDependencies("a")
	assert.Contains(t, deps, "b")
	assert.Contains(t, deps, "c")
}

func TestGraphAddNode_RegistersDependenciesAsNodes(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b"})

	assert.True(t, g.HasNode("b"))
	assert.Empty(t, g.GetDependencies("b"))

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Len(t, order, 2)
}

func TestGraphRemoveNode_StripsEdges(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", nil)

	g.RemoveNode("b")

	assert.False(t, g.HasNode("b"))
	assert.Empty(t, g.GetDependencies("a"))

	// Removal must not cascade to dependents.
	assert.True(t, g.HasNode("a"))

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, order)
}

func TestGraphRemoveNode_AbsentIsNoop(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", nil)
	g.RemoveNode("ghost")
	assert.Equal(t, []string{"a"}, g.GetAllNodes())
}

func TestGraphSortCache_InvalidatedByMutation(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("a", []string{"b"})
	g.AddNode("b", nil)

	first, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, first, 2)

	g.AddNode("c", []string{"a"})

	second, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Less(t, indexOf(t, second, "a"), indexOf(t, second, "c"))
}

func TestGraphGetDependents(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("app", []string{"db"})
	g.AddNode("worker", []string{"db"})
	g.AddNode("db", nil)

	assert.ElementsMatch(t, []string{"app", "worker"}, g.GetDependents("db"))
	assert.Empty(t, g.GetDependents("app"))
}

func TestGraphConcurrentAccess(t *testing.T) {
	t.Parallel()

	g := resolve.NewGraph()
	g.AddNode("root", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g.AddNode("leaf", []string{"root"})
				_, _ = g.TopologicalSort()
				_ = g.GetAllNodes()
				_ = g.GetDependencies("leaf")
			}
		}()
	}
	wg.Wait()

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Less(t, indexOf(t, order, "root"), indexOf(t, order, "leaf"))
}
