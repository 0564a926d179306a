// Command castellan runs the module coordinator: it discovers module
// manifests, resolves dependencies, drives lifecycles, and serves the
// admin HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/castellan/castellan/config"
	"github.com/castellan/castellan/config/source"
	"github.com/castellan/castellan/discovery"
	"github.com/castellan/castellan/events"
	"github.com/castellan/castellan/lifecycle"
	"github.com/castellan/castellan/logging"
	"github.com/castellan/castellan/manager"
	"github.com/castellan/castellan/metrics"
	"github.com/castellan/castellan/store"
	"github.com/castellan/castellan/web"
)

func main() {
	fs := pflag.NewFlagSet("castellan", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configDir := fs.String("config-dir", "configs", "directory holding castellan.yaml")
	profile := fs.String("profile", os.Getenv("CASTELLAN_PROFILE"), "configuration profile overlay")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	root, err := loadConfig(*configDir, *profile)
	if err != nil {
		slog.Error("configuration load failed", "error", err)
		os.Exit(1)
	}

	logger := logging.New(root.Logging.Level, root.Logging.Format).With(
		slog.String("app", root.App.Name),
		slog.String("version", root.App.Version),
	)

	if err := run(root, logger); err != nil {
		logger.Error("coordinator error", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers file, environment, and CLI sources. A missing config
// file is fine; environment and flags still apply over the defaults.
func loadConfig(dir, profile string) (config.Root, error) {
	sources := []config.Source{}
	if _, err := os.Stat(dir); err == nil {
		sources = append(sources, &source.FileSource{BasePath: dir, Profile: profile})
	}
	sources = append(sources, &source.EnvSource{}, &source.CLISource{})

	var root config.Root
	if _, err := config.NewManager(&root, config.Options{}, sources...); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return root, err
		}
	}
	root.ApplyDefaults()
	return root, nil
}

func run(root config.Root, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateStore, err := buildStore(root.Store)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var sink lifecycle.Metrics = metrics.NewLifecycle(reg)

	dirSources := make([]discovery.Source, 0, len(root.Modules.Dirs))
	for _, dir := range root.Modules.Dirs {
		dirSources = append(dirSources, discovery.NewManifestSource(dir))
	}

	bus := events.NewBus()
	eventCh := make(chan events.Event, 64)
	bus.Subscribe(eventCh)
	go func() {
		for evt := range eventCh {
			logger.Debug("lifecycle event",
				"type", evt.Type,
				"module", evt.Module,
				"from", evt.From,
				"to", evt.To,
				"op", evt.Op,
			)
		}
	}()

	opts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithLifecycleMetrics(sink),
		manager.WithEventBus(bus),
	}
	if stateStore != nil {
		opts = append(opts, manager.WithStateStore(stateStore))
	}

	mgr, err := manager.New(discovery.NewMultiSource(dirSources...), opts...)
	if err != nil {
		return err
	}
	defer mgr.Close()

	for _, name := range root.Modules.Ignore {
		if err := mgr.Ignore(name); err != nil {
			logger.Warn("cannot ignore configured module", "module", name, "error", err)
		}
	}

	if err := mgr.Refresh(ctx); err != nil {
		return err
	}

	if root.Modules.Autoload {
		loaded := mgr.LoadAll(ctx)
		started := mgr.StartAll(ctx)
		logger.Info("autoload complete",
			"loaded", loaded.Succeeded, "load_failures", loaded.Failed,
			"started", started.Succeeded, "start_failures", started.Failed,
		)
	}

	var srv *web.Server
	if root.Server.Enabled {
		srv = web.NewServer(mgr, root, logger, reg)
		srv.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}

	res := mgr.StopAll(shutdownCtx)
	logger.Info("modules stopped", "succeeded", res.Succeeded, "failed", res.Failed)
	return nil
}

func buildStore(cfg config.StoreConfig) (store.StateStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return store.NewMemoryStore(), nil
	case "file":
		path := cfg.Path
		if path == "" {
			path = "castellan-state.json"
		}
		return store.NewFileStore(path)
	case "redis":
		addr := cfg.Addr
		if addr == "" {
			addr = "localhost:6379"
		}
		return store.NewRedisStoreAddr(addr), nil
	default:
		return nil, errors.New("unknown store type " + cfg.Type)
	}
}
