package core

// State is a module's position in its lifecycle.
type State string

const (
	StateDiscovered  State = "discovered"
	StateInstalled   State = "installed"
	StateDisabled    State = "disabled"
	StateInitialized State = "initialized"
	StateLoaded      State = "loaded"
	StateStarted     State = "started"
	StateStopped     State = "stopped"
	StateUninstalled State = "uninstalled"
)

// validTransitions is the single source of truth for legal state changes.
// There are no self-edges; repeated start/stop calls are short-circuited by
// the lifecycle manager before this table is consulted. Uninstalled is
// terminal and has no outgoing transitions.
var validTransitions = map[State][]State{
	StateDiscovered:  {StateInstalled},
	StateInstalled:   {StateInitialized, StateLoaded, StateDisabled, StateUninstalled},
	StateDisabled:    {StateInstalled, StateUninstalled},
	StateInitialized: {StateStarted, StateDisabled},
	StateLoaded:      {StateInitialized, StateStarted, StateStopped, StateDisabled},
	StateStarted:     {StateStopped, StateDisabled},
	StateStopped:     {StateStarted, StateDisabled},
	StateUninstalled: {},
}

// IsValidTransition reports whether a module may move from one state to
// another. Pure lookup, no side effects.
func IsValidTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the states reachable from the given state.
// The returned slice is a copy.
func TransitionsFrom(from State) []State {
	return append([]State(nil), validTransitions[from]...)
}

// AllStates lists every lifecycle state.
func AllStates() []State {
	return []State{
		StateDiscovered,
		StateInstalled,
		StateDisabled,
		StateInitialized,
		StateLoaded,
		StateStarted,
		StateStopped,
		StateUninstalled,
	}
}

// ParseState converts a stored string back into a State. The second return
// is false for values that do not name a known state.
func ParseState(s string) (State, bool) {
	for _, st := range AllStates() {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}
