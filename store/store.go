// Package store persists module lifecycle state and the ignore set across
// restarts. The coordinator treats a store as optional: when none is
// configured, persistence is silently skipped.
package store

import (
	"github.com/castellan/castellan/core"
)

// StateStore saves and restores module states and the set of ignored module
// names. Implementations must be safe for concurrent use.
type StateStore interface {
	// SaveState records the state for a module.
	SaveState(name string, state core.State) error
	// LoadState returns the recorded state for a module. The boolean is
	// false when no state was recorded (or the recorded value is invalid).
	LoadState(name string) (core.State, bool, error)
	// DeleteState removes a module's recorded state. Absent is a no-op.
	DeleteState(name string) error
	// ListStates returns every recorded module state.
	ListStates() (map[string]core.State, error)
	// SaveIgnored replaces the persisted ignore set.
	SaveIgnored(names map[string]struct{}) error
	// LoadIgnored returns the persisted ignore set, empty when none.
	LoadIgnored() (map[string]struct{}, error)
}
