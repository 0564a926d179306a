// Package manager is the coordinator facade: it composes discovery, the
// dependency resolver, and the lifecycle manager into "load this module and
// everything it needs", "start in dependency order", and "stop in reverse
// order", with an ignore list and optional state persistence on top.
package manager

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/discovery"
	"github.com/castellan/castellan/events"
	"github.com/castellan/castellan/lifecycle"
	"github.com/castellan/castellan/resolve"
	"github.com/castellan/castellan/store"
)

// Manager coordinates module discovery, resolution, and lifecycle.
//
// The available-modules map is read-many by resolution and replaced
// wholesale under the manager's own lock on every refresh or ignore
// mutation, so readers always see a consistent (if possibly stale) view.
type Manager struct {
	source    discovery.Source
	factory   core.Factory
	stateSt   store.StateStore
	logger    *slog.Logger
	resolver  *resolve.Resolver
	lifecycle *lifecycle.Manager

	metricsSink lifecycle.Metrics
	bus         *events.Bus

	mu         sync.Mutex
	discovered map[string]core.Descriptor // full discovery result
	available  map[string]core.Descriptor // discovered minus ignored
	ignored    map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithFactory sets how descriptors become behavior hooks. Defaults to
// no-op hooks for every module.
func WithFactory(f core.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithStateStore enables persistence of states and the ignore set.
func WithStateStore(s store.StateStore) Option {
	return func(m *Manager) { m.stateSt = s }
}

// WithLogger injects the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLifecycleMetrics wires a metrics sink into the lifecycle manager.
func WithLifecycleMetrics(mx lifecycle.Metrics) Option {
	return func(m *Manager) { m.metricsSink = mx }
}

// WithEventBus publishes every lifecycle event (load, state change,
// failure, removal) to the given bus.
func WithEventBus(b *events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// New creates a Manager over the given descriptor source. A persisted
// ignore set, when a store is configured, is restored immediately; call
// Refresh to run the first discovery pass.
func New(source discovery.Source, opts ...Option) (*Manager, error) {
	m := &Manager{
		source:     source,
		factory:    core.NopFactory,
		logger:     slog.Default(),
		resolver:   resolve.NewResolver(),
		discovered: make(map[string]core.Descriptor),
		available:  make(map[string]core.Descriptor),
		ignored:    make(map[string]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	lcOpts := []lifecycle.Option{lifecycle.WithLogger(m.logger)}
	if m.metricsSink != nil {
		lcOpts = append(lcOpts, lifecycle.WithMetrics(m.metricsSink))
	}
	if m.bus != nil {
		lcOpts = append(lcOpts, lifecycle.WithEvents(m.bus))
	}
	m.lifecycle = lifecycle.NewManager(lcOpts...)

	if m.stateSt != nil {
		ignored, err := m.stateSt.LoadIgnored()
		if err != nil {
			return nil, err
		}
		m.ignored = ignored
	}
	return m, nil
}

// Refresh runs discovery and replaces the available-modules view, filtering
// out ignored names. Loaded instances are untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	descs, err := m.source.Discover(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.discovered = descs
	m.rebuildAvailableLocked()
	m.logger.Info("modules discovered",
		"source", m.source.Name(),
		"total", len(m.discovered),
		"available", len(m.available),
	)
	return nil
}

// rebuildAvailableLocked recomputes the filtered view. Callers hold m.mu.
func (m *Manager) rebuildAvailableLocked() {
	available := make(map[string]core.Descriptor, len(m.discovered))
	for name, d := range m.discovered {
		if _, skip := m.ignored[name]; skip {
			continue
		}
		available[name] = d
	}
	m.available = available
}

// availableSnapshot returns the current view; the map itself is never
// mutated after publication, so handing it to the resolver is safe.
func (m *Manager) availableSnapshot() map[string]core.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Available lists the discoverable (non-ignored) module names, sorted.
func (m *Manager) Available() []string {
	snap := m.availableSnapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptor returns the available descriptor for name.
func (m *Manager) Descriptor(name string) (core.Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.available[name]
	return d, ok
}

// Load resolves name's dependency closure against the available modules and
// instantiates, in dependency order, every module of the closure that has
// no instance yet. With force, every module of the closure is re-created,
// replacing prior instances. Returns the target's instance.
func (m *Manager) Load(ctx context.Context, name string, force bool) (*core.Instance, error) {
	if err := core.CheckName(name); err != nil {
		return nil, err
	}

	if !force {
		if inst := m.lifecycle.GetInstance(name); inst != nil {
			return inst, nil
		}
	}

	// One snapshot serves both resolution and instantiation. Taking a
	// second one here would let a concurrent refresh or ignore swap the
	// map between the two reads, leaving the resolved order referring to
	// descriptors the later view no longer holds.
	snap := m.availableSnapshot()

	order, err := m.resolver.Resolve(name, snap)
	if err != nil {
		return nil, err
	}

	for _, dep := range order {
		if !force && m.lifecycle.HasInstance(dep) {
			continue
		}
		desc, ok := snap[dep]
		if !ok {
			return nil, &core.NotFoundError{Name: dep}
		}
		hooks, err := m.factory(desc)
		if err != nil {
			return nil, err
		}
		m.lifecycle.CreateInstance(desc, hooks)
		m.restoreState(dep)
	}

	return m.lifecycle.GetInstance(name), nil
}

// restoreState reapplies a persisted disable to a freshly created
// instance. Runtime states (started, stopped) are not restored; modules
// always come back loaded and are started anew.
func (m *Manager) restoreState(name string) {
	if m.stateSt == nil {
		return
	}
	saved, ok, err := m.stateSt.LoadState(name)
	if err != nil {
		m.logger.Warn("state restore failed", "module", name, "error", err)
		return
	}
	if ok && saved == core.StateDisabled {
		if err := m.lifecycle.Transition(name, core.StateDisabled); err != nil {
			m.logger.Warn("cannot restore disabled state", "module", name, "error", err)
		}
	}
}

// Start starts name after starting, in dependency order, every loaded
// module that precedes it in the global order. Start never loads: a module
// without an instance yields *core.NotFoundError.
//
// When the global order cannot be computed the call degrades to starting
// only the requested module rather than failing outright.
func (m *Manager) Start(ctx context.Context, name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}
	if !m.lifecycle.HasInstance(name) {
		return &core.NotFoundError{Name: name}
	}

	prefix, err := m.startPrefix(name)
	if err != nil {
		m.logger.Warn("dependency order unavailable, starting module alone",
			"module", name, "error", err)
		prefix = []string{name}
	}

	for _, n := range prefix {
		if err := m.lifecycle.StartModule(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// startPrefix computes the loaded modules that must start before (and
// including) name, in order.
func (m *Manager) startPrefix(name string) ([]string, error) {
	order, err := m.globalOrder()
	if err != nil {
		return nil, err
	}

	var prefix []string
	for _, n := range order {
		if !m.lifecycle.HasInstance(n) {
			continue
		}
		prefix = append(prefix, n)
		if n == name {
			return prefix, nil
		}
	}
	return nil, &core.NotFoundError{Name: name}
}

// globalOrder topologically sorts every loaded instance by its declared
// dependencies. Edges to modules that are not loaded are dropped so a
// partially loaded fleet still orders cleanly.
func (m *Manager) globalOrder() ([]string, error) {
	instances := m.lifecycle.GetAllInstances()
	g := resolve.NewGraph()
	for name, inst := range instances {
		var deps []string
		for _, dep := range inst.Descriptor().Dependencies {
			if _, loaded := instances[dep]; loaded {
				deps = append(deps, dep)
			}
		}
		g.AddNode(name, deps)
	}
	return g.TopologicalSort()
}

// Stop stops a single module; errors from its stop hook propagate.
func (m *Manager) Stop(ctx context.Context, name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}
	return m.lifecycle.StopModule(ctx, name)
}

// Bootstrap initializes a single module without starting it.
func (m *Manager) Bootstrap(ctx context.Context, name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}
	return m.lifecycle.BootstrapModule(ctx, name)
}

// Unload stops name if running, removes its instance, and deletes its
// persisted state.
func (m *Manager) Unload(ctx context.Context, name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}
	if !m.lifecycle.HasInstance(name) {
		return &core.NotFoundError{Name: name}
	}
	if err := m.lifecycle.StopModule(ctx, name); err != nil {
		return err
	}
	m.lifecycle.RemoveInstance(name)
	m.persistDelete(name)
	return nil
}

// Instance returns the live instance for name, or nil.
func (m *Manager) Instance(name string) *core.Instance {
	return m.lifecycle.GetInstance(name)
}

// Instances returns a snapshot of all live instances.
func (m *Manager) Instances() map[string]*core.Instance {
	return m.lifecycle.GetAllInstances()
}

// States returns the current state of every live instance.
func (m *Manager) States() map[string]core.State {
	instances := m.lifecycle.GetAllInstances()
	out := make(map[string]core.State, len(instances))
	for name, inst := range instances {
		out[name] = inst.State()
	}
	return out
}

// Close releases background resources (the async hook pool).
func (m *Manager) Close() {
	m.lifecycle.Close()
}
