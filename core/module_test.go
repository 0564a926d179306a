package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
)

func TestNewInstance(t *testing.T) {
	t.Parallel()

	d := core.Descriptor{Name: "db", Version: "2.1.0", Dependencies: []string{"config"}}
	inst := core.NewInstance(d, nil)

	assert.Equal(t, core.StateLoaded, inst.State())
	assert.Equal(t, "db", inst.Name())
	assert.Equal(t, d, inst.Descriptor())
	assert.False(t, inst.CreatedAt().IsZero())
	assert.Nil(t, inst.StartedAt())
	// Nil hooks fall back to the no-op base.
	require.NotNil(t, inst.Hooks())
}

func TestInstance_DistinctIDs(t *testing.T) {
	t.Parallel()

	d := core.Descriptor{Name: "db", Version: "1.0.0"}
	a := core.NewInstance(d, nil)
	b := core.NewInstance(d, nil)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestInstance_SetStateRecordsStartedAt(t *testing.T) {
	t.Parallel()

	inst := core.NewInstance(core.Descriptor{Name: "db", Version: "1.0.0"}, nil)
	inst.SetState(core.StateStarted)

	assert.Equal(t, core.StateStarted, inst.State())
	require.NotNil(t, inst.StartedAt())
	assert.False(t, inst.StartedAt().IsZero())
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Contains(t, (&core.NotFoundError{Name: "db"}).Error(), `"db"`)

	depErr := &core.DependencyError{Module: "db", MissingDeps: []string{"config"}}
	assert.Contains(t, depErr.Error(), "config")
	assert.Contains(t, depErr.Error(), `"db"`)

	cycleErr := &core.CircularDependencyError{Cycle: []string{"a", "b", "a"}}
	assert.Contains(t, cycleErr.Error(), "a -> b -> a")

	stateErr := &core.StateError{
		Name:     "db",
		Current:  core.StateDisabled,
		Expected: []core.State{core.StateLoaded, core.StateStopped},
	}
	assert.Contains(t, stateErr.Error(), "disabled")
	assert.Contains(t, stateErr.Error(), "loaded")
}
