package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/castellan/castellan/core"
)

// MultiSource composes several sources into one discovery pass. A module
// name appearing in more than one source is an error; there is no
// precedence between sources.
type MultiSource struct {
	sources []Source
}

func NewMultiSource(sources ...Source) *MultiSource {
	return &MultiSource{sources: sources}
}

func (m *MultiSource) Name() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return "multi:" + strings.Join(names, ",")
}

func (m *MultiSource) Discover(ctx context.Context) (map[string]core.Descriptor, error) {
	out := map[string]core.Descriptor{}
	origin := map[string]string{}
	for _, src := range m.sources {
		descs, err := src.Discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("discovery: source %s: %w", src.Name(), err)
		}
		for name, d := range descs {
			if prev, dup := origin[name]; dup {
				return nil, fmt.Errorf("discovery: duplicate module %q (%s and %s)", name, prev, src.Name())
			}
			origin[name] = src.Name()
			out[name] = d
		}
	}
	return out, nil
}
