// Package discovery supplies module descriptors to the coordinator. Sources
// answer one question: which modules exist, and what do they declare. How a
// module's code gets loaded is a separate concern handled by the factory the
// coordinator is constructed with.
package discovery

import (
	"context"

	"github.com/castellan/castellan/core"
)

// Source produces the available module set. Discover must return a fresh
// map on each call; the coordinator replaces its view wholesale.
type Source interface {
	// Discover returns descriptors keyed by module name.
	Discover(ctx context.Context) (map[string]core.Descriptor, error)
	// Name identifies the source in logs and errors.
	Name() string
}

// StaticSource serves a fixed descriptor set. Intended for tests and for
// embedding the coordinator with compile-time module registration.
type StaticSource struct {
	descriptors map[string]core.Descriptor
}

// NewStaticSource validates and indexes the given descriptors.
func NewStaticSource(descs ...core.Descriptor) (*StaticSource, error) {
	index := make(map[string]core.Descriptor, len(descs))
	for _, d := range descs {
		if err := validateDescriptor(d); err != nil {
			return nil, err
		}
		if _, dup := index[d.Name]; dup {
			return nil, &duplicateError{name: d.Name}
		}
		index[d.Name] = d
	}
	return &StaticSource{descriptors: index}, nil
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Discover(ctx context.Context) (map[string]core.Descriptor, error) {
	out := make(map[string]core.Descriptor, len(s.descriptors))
	for name, d := range s.descriptors {
		out[name] = d
	}
	return out, nil
}
