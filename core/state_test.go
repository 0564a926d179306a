package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
)

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to core.State
		want     bool
	}{
		{core.StateDiscovered, core.StateInstalled, true},
		{core.StateDiscovered, core.StateStarted, false},
		{core.StateInstalled, core.StateInitialized, true},
		{core.StateInstalled, core.StateLoaded, true},
		{core.StateInstalled, core.StateDisabled, true},
		{core.StateInstalled, core.StateUninstalled, true},
		{core.StateInstalled, core.StateStarted, false},
		{core.StateDisabled, core.StateInstalled, true},
		{core.StateDisabled, core.StateUninstalled, true},
		{core.StateDisabled, core.StateStarted, false},
		{core.StateInitialized, core.StateStarted, true},
		{core.StateInitialized, core.StateDisabled, true},
		{core.StateInitialized, core.StateStopped, false},
		{core.StateLoaded, core.StateInitialized, true},
		{core.StateLoaded, core.StateStarted, true},
		{core.StateLoaded, core.StateStopped, true},
		{core.StateLoaded, core.StateDisabled, true},
		{core.StateLoaded, core.StateUninstalled, false},
		{core.StateStarted, core.StateStopped, true},
		{core.StateStarted, core.StateDisabled, true},
		{core.StateStarted, core.StateInstalled, false},
		{core.StateStopped, core.StateStarted, true},
		{core.StateStopped, core.StateDisabled, true},
		{core.StateUninstalled, core.StateInstalled, false},
		{core.StateUninstalled, core.StateDiscovered, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, core.IsValidTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionTable_EveryStateIsKeyed(t *testing.T) {
	t.Parallel()

	for _, s := range core.AllStates() {
		// TransitionsFrom must not panic and must return a defined (possibly
		// empty) set for every state.
		allowed := core.TransitionsFrom(s)
		if s == core.StateUninstalled {
			assert.Empty(t, allowed, "uninstalled is terminal")
		}
	}
}

func TestTransitionTable_NoSelfTransitions(t *testing.T) {
	t.Parallel()

	for _, s := range core.AllStates() {
		assert.False(t, core.IsValidTransition(s, s),
			"self-transition %s must not be in the table", s)
	}
}

func TestTransitionTable_UninstalledUnreachableFromItself(t *testing.T) {
	t.Parallel()

	for _, to := range core.AllStates() {
		assert.False(t, core.IsValidTransition(core.StateUninstalled, to))
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	for _, s := range core.AllStates() {
		got, ok := core.ParseState(string(s))
		require.True(t, ok)
		assert.Equal(t, s, got)
	}

	_, ok := core.ParseState("warp-drive")
	assert.False(t, ok)
}
