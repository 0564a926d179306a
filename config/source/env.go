package source

import (
	"context"
	"os"
	"strings"

	"github.com/castellan/castellan/config"
)

// envPrefix filters which environment variables are loaded.
const envPrefix = "CASTELLAN_"

// EnvSource loads CASTELLAN_-prefixed environment variables, lowercased
// and split on underscores into a nested map:
//
//	CASTELLAN_SERVER_ADDR=:9090  -> {server: {addr: ":9090"}}
//	CASTELLAN_LOGGING_LEVEL=debug -> {logging: {level: "debug"}}
//
// Values stay strings; the binder converts types. When a leaf already
// occupies a path, deeper entries for that path are skipped.
type EnvSource struct{}

func (e *EnvSource) Name() string { return "env" }

func (e *EnvSource) Load(ctx context.Context) (map[string]any, error) {
	result := make(map[string]any)
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, envPrefix) {
			continue
		}

		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		segments := strings.Split(key, "_")
		if len(segments) == 0 {
			continue
		}
		setNestedValue(result, segments, value)
	}
	return result, nil
}

// Watch is unsupported; the environment is static for the process.
func (e *EnvSource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

func setNestedValue(m map[string]any, segments []string, value string) {
	current := m
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if i == len(segments)-1 {
			current[segment] = value
			return
		}

		if existing, exists := current[segment]; exists {
			nested, ok := existing.(map[string]any)
			if !ok {
				// A leaf already claims this path.
				return
			}
			current = nested
			continue
		}
		nested := make(map[string]any)
		current[segment] = nested
		current = nested
	}
}
