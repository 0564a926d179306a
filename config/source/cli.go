package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/castellan/castellan/config"
)

// CLISource loads dot-notated command-line flags into a nested map:
//
//	--server.addr=:9090 --logging.level debug
//	  -> {server: {addr: ":9090"}, logging: {level: "debug"}}
//
// Both --flag=value and --flag value forms work, single-dash long flags
// are accepted, and unknown or empty values are ignored. Put this source
// last so flags override files and environment.
type CLISource struct {
	// Args overrides os.Args[1:] when non-nil. Used by tests.
	Args []string
}

func (c *CLISource) Name() string { return "cli" }

func (c *CLISource) Load(ctx context.Context) (map[string]any, error) {
	args := c.Args
	if args == nil {
		args = os.Args[1:]
	}
	return parseCliFlags(args)
}

// Watch is unsupported; arguments are static for the process.
func (c *CLISource) Watch(ctx context.Context, ch chan<- config.Event) error { return nil }

func parseCliFlags(rawArgs []string) (map[string]any, error) {
	result := make(map[string]any)
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	registered := make(map[string]bool)
	args := normalizeArgs(rawArgs)

	// First pass registers every flag-looking argument so Parse accepts it.
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := extractFlagName(arg)
		if name == "" {
			continue
		}
		if !registered[name] {
			fs.String(name, "", fmt.Sprintf("config value for %s", name))
			registered[name] = true
		}
		// Skip a separated value so it is not mistaken for a flag.
		if !strings.Contains(arg, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}

	_ = fs.Parse(args)

	fs.VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed || flag.Value.String() == "" {
			return
		}
		segments := strings.Split(flag.Name, ".")
		if len(segments) == 0 {
			return
		}
		setNestedValue(result, segments, flag.Value.String())
	})

	return result, nil
}

// normalizeArgs promotes single-dash long flags to double-dash for pflag.
func normalizeArgs(args []string) []string {
	normalized := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			withoutDash := strings.TrimPrefix(arg, "-")
			if len(withoutDash) > 1 && withoutDash[0] != '=' {
				normalized[i] = "-" + arg
				continue
			}
		}
		normalized[i] = arg
	}
	return normalized
}

func extractFlagName(arg string) string {
	arg = strings.TrimLeft(arg, "-")
	if idx := strings.Index(arg, "="); idx != -1 {
		return arg[:idx]
	}
	return arg
}
