// Package config loads the coordinator's configuration from layered
// sources (files, environment, CLI flags), binds it onto typed structs,
// validates it, and notifies subscribers when a reload changes anything.
package config

import "context"

// Source is one layer of configuration data. Later sources in a Manager's
// chain override earlier ones.
type Source interface {
	// Load returns the source's data as a string-keyed map, possibly
	// nested. Implementations return a fresh map on every call.
	Load(ctx context.Context) (map[string]any, error)

	// Watch sends change notifications on ch until ctx is done. Sources
	// without change detection return nil immediately; the channel is
	// never closed by the implementation.
	Watch(ctx context.Context, ch chan<- Event) error

	// Name identifies the source in errors and logs.
	Name() string
}

// Event describes a configuration change after a reload.
type Event struct {
	// ChangedKeys holds the top-level struct field names whose values
	// differ between OldConfig and NewConfig.
	ChangedKeys []string

	OldConfig any
	NewConfig any
}
