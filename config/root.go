package config

import "time"

// AppConfig identifies the running coordinator.
type AppConfig struct {
	Name    string `config:"name"`
	Version string `config:"version"`
}

// ModulesConfig controls discovery and loading behavior.
type ModulesConfig struct {
	// Dirs are the manifest directories scanned during discovery.
	Dirs []string `config:"dirs"`
	// Ignore seeds the ignore set on startup; the runtime ignore set can
	// still grow and shrink through the API.
	Ignore []string `config:"ignore"`
	// Autoload loads and starts every discovered module at boot.
	Autoload bool `config:"autoload"`
}

// StoreConfig selects where module states and the ignore set persist.
type StoreConfig struct {
	// Type is one of "memory", "file", or "redis". Empty disables
	// persistence entirely.
	Type string `config:"type" validate:"omitempty,oneof=memory file redis"`
	// Path is the JSON state file for the file store.
	Path string `config:"path"`
	// Addr is the Redis address for the redis store.
	Addr string `config:"addr"`
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	Enabled      bool          `config:"enabled"`
	Addr         string        `config:"addr"`
	ReadTimeout  time.Duration `config:"readTimeout"`
	WriteTimeout time.Duration `config:"writeTimeout"`
	IdleTimeout  time.Duration `config:"idleTimeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `config:"enabled"`
	Path    string `config:"path"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `config:"level" validate:"omitempty,oneof=debug info warn error"`
	// Format is "text" or "json".
	Format string `config:"format" validate:"omitempty,oneof=text json"`
}

// Root is the coordinator's full configuration tree.
type Root struct {
	App     AppConfig     `config:"app"`
	Modules ModulesConfig `config:"modules"`
	Store   StoreConfig   `config:"store"`
	Server  ServerConfig  `config:"server"`
	Metrics MetricsConfig `config:"metrics"`
	Logging LoggingConfig `config:"logging"`
}

// Defaults returns a Root pre-filled so that an empty configuration file
// still yields a runnable coordinator.
func Defaults() Root {
	return Root{
		App: AppConfig{Name: "castellan", Version: "dev"},
		Modules: ModulesConfig{
			Dirs: []string{"modules"},
		},
		Server: ServerConfig{
			Enabled:      true,
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// ApplyDefaults fills zero-valued fields that have a sensible default.
// Explicit false booleans cannot be distinguished from unset ones, so the
// enable flags default at construction time via Defaults instead.
func (r *Root) ApplyDefaults() {
	d := Defaults()
	if r.App.Name == "" {
		r.App.Name = d.App.Name
	}
	if r.App.Version == "" {
		r.App.Version = d.App.Version
	}
	if len(r.Modules.Dirs) == 0 {
		r.Modules.Dirs = d.Modules.Dirs
	}
	if r.Server.Addr == "" {
		r.Server.Addr = d.Server.Addr
	}
	if r.Server.ReadTimeout == 0 {
		r.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if r.Server.WriteTimeout == 0 {
		r.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if r.Server.IdleTimeout == 0 {
		r.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if r.Metrics.Path == "" {
		r.Metrics.Path = d.Metrics.Path
	}
	if r.Logging.Level == "" {
		r.Logging.Level = d.Logging.Level
	}
	if r.Logging.Format == "" {
		r.Logging.Format = d.Logging.Format
	}
}
