package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/castellan/castellan/core"
)

// ManifestSource scans a directory for YAML module manifests. Each manifest
// declares one module (name, version, dependencies, optional config block).
// Missing directories mean "no modules" rather than an error, which keeps
// first startup simple.
type ManifestSource struct {
	dir string
}

// NewManifestSource creates a source over the given directory.
func NewManifestSource(dir string) *ManifestSource {
	return &ManifestSource{dir: dir}
}

func (s *ManifestSource) Name() string { return "manifest:" + s.dir }

// Discover parses every *.yaml / *.yml file directly under the directory,
// in deterministic (sorted) order, and rejects duplicate module names.
func (s *ManifestSource) Discover(ctx context.Context) (map[string]core.Descriptor, error) {
	dir := strings.TrimSpace(s.dir)
	if dir == "" {
		return map[string]core.Descriptor{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]core.Descriptor{}, nil
		}
		return nil, fmt.Errorf("discovery: read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	out := make(map[string]core.Descriptor, len(names))
	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		path := filepath.Join(dir, name)
		desc, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[desc.Name]; dup {
			return nil, fmt.Errorf("discovery: duplicate module %q (%s and %s)", desc.Name, prev, path)
		}
		seen[desc.Name] = path
		out[desc.Name] = desc
	}
	return out, nil
}

// LoadManifest reads and validates a single manifest file.
func LoadManifest(path string) (core.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Descriptor{}, fmt.Errorf("discovery: read %s: %w", path, err)
	}
	desc, err := ParseManifest(data)
	if err != nil {
		return core.Descriptor{}, fmt.Errorf("discovery: %s: %w", path, err)
	}
	return desc, nil
}

// ParseManifest decodes and validates one manifest payload.
func ParseManifest(data []byte) (core.Descriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return core.Descriptor{}, fmt.Errorf("manifest is empty")
	}
	var desc core.Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return core.Descriptor{}, fmt.Errorf("decode manifest: %w", err)
	}
	if desc.Version == "" {
		desc.Version = "0.1.0"
	}
	if err := validateDescriptor(desc); err != nil {
		return core.Descriptor{}, err
	}
	return desc, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
