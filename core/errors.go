package core

import (
	"fmt"
	"strings"
)

// NotFoundError reports an operation against a module name with no
// instance or registration behind it.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %q not found", e.Name)
}

// DependencyError reports a declared dependency that is absent from the
// set of available modules. MissingDeps is empty when the module itself
// is the missing one.
type DependencyError struct {
	Module      string
	MissingDeps []string
}

func (e *DependencyError) Error() string {
	if len(e.MissingDeps) == 0 {
		return fmt.Sprintf("module %q is not available", e.Module)
	}
	return fmt.Sprintf("module %q declares missing dependencies: %s",
		e.Module, strings.Join(e.MissingDeps, ", "))
}

// CircularDependencyError carries the ordered cycle path, from the first
// repeated module back to the one that closed the loop.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// StateError reports an illegal lifecycle transition. The hook is never
// invoked when this fires; the check precedes the call.
type StateError struct {
	Name     string
	Current  State
	Expected []State
}

func (e *StateError) Error() string {
	expected := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		expected[i] = string(s)
	}
	return fmt.Sprintf("module %q is %s, expected one of: %s",
		e.Name, e.Current, strings.Join(expected, ", "))
}
