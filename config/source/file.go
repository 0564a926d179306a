// Package source provides the built-in configuration sources: YAML files
// with profile overlays, prefixed environment variables, and dot-notated
// CLI flags.
package source

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/castellan/castellan/config"
)

// FileSource loads castellan.yaml (or .yml) from BasePath, then overlays
// castellan.{Profile}.yaml when Profile is set. Overlay values replace
// base values at the top level; a missing overlay file is silently
// skipped, a missing base file is an error.
type FileSource struct {
	// BasePath is the directory holding the configuration files.
	BasePath string
	// Profile selects an optional overlay, e.g. "prod".
	Profile string
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Load(ctx context.Context) (map[string]any, error) {
	baseFile := findYAMLFile(f.BasePath, "castellan")
	if baseFile == "" {
		return nil, os.ErrNotExist
	}

	data := map[string]any{}
	if err := readYAML(baseFile, data); err != nil {
		return nil, err
	}

	if f.Profile != "" {
		if overlay := findYAMLFile(f.BasePath, "castellan."+f.Profile); overlay != "" {
			if err := readYAML(overlay, data); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

// Watch is unsupported; file changes require an explicit reload.
func (f *FileSource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

// findYAMLFile resolves basename against both supported extensions.
func findYAMLFile(dir, basename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, basename+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func readYAML(path string, out map[string]any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, &out)
}
