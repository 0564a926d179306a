// Package lifecycle owns live module instances and drives their state
// transitions. Every transition is checked against the core transition table
// before the module's own hook runs; state is only updated after the hook
// returns without error.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/events"
)

// Metrics receives lifecycle outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ModuleStarted(name string)
	ModuleStopped(name string)
	ModuleFailed(name, op string)
	StateChanged(name string, from, to core.State)
	// ModuleRemoved clears per-module series after an unload or
	// uninstall so gauges do not linger for dead instances.
	ModuleRemoved(name string)
}

// Manager owns the map of module name to instance. A single mutex serializes
// map access and the check-then-update around each transition; the hook call
// itself runs outside the lock so a slow module cannot block unrelated
// lookups. That leaves a narrow window where two concurrent starts of the
// same module can both pass the "not already started" check and invoke the
// hook twice; holding the lock through the hook would close it at the cost
// of serializing every operation behind the slowest module.
type Manager struct {
	mu        sync.Mutex
	instances map[string]*core.Instance
	logger    *slog.Logger
	metrics   Metrics
	bus       *events.Bus

	poolOnce sync.Once
	pool     *ants.Pool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger injects the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics injects a metrics sink. Nil disables recording.
func WithMetrics(mx Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithEvents injects an event bus; every instance creation, state change,
// failure, and removal is published to it. Nil disables publishing.
func WithEvents(b *events.Bus) Option {
	return func(m *Manager) { m.bus = b }
}

// NewManager creates an empty lifecycle manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		instances: make(map[string]*core.Instance),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CreateInstance instantiates a module from its descriptor in the Loaded
// state and stores it under the descriptor name, overwriting any existing
// instance. Callers wanting "load once" semantics must check HasInstance
// first; overwriting is how force reload works.
func (m *Manager) CreateInstance(desc core.Descriptor, hooks core.Hooks) *core.Instance {
	inst := core.NewInstance(desc, hooks)

	m.mu.Lock()
	m.instances[desc.Name] = inst
	m.mu.Unlock()

	m.logger.Info("module instance created",
		"module", desc.Name,
		"version", desc.Version,
		"dependencies", desc.Dependencies,
	)
	m.publish(events.Event{Type: events.TypeLoaded, Module: desc.Name, To: core.StateLoaded})
	return inst
}

// GetInstance returns the instance for name, or nil.
func (m *Manager) GetInstance(name string) *core.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[name]
}

// HasInstance reports whether an instance exists for name.
func (m *Manager) HasInstance(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.instances[name]
	return ok
}

// RemoveInstance drops the instance for name. No-op when absent.
func (m *Manager) RemoveInstance(name string) {
	m.mu.Lock()
	inst, ok := m.instances[name]
	delete(m.instances, name)
	m.mu.Unlock()

	if ok {
		m.logger.Info("module instance removed", "module", name)
		m.record(func(mx Metrics) { mx.ModuleRemoved(name) })
		m.publish(events.Event{Type: events.TypeRemoved, Module: name, From: inst.State()})
	}
}

// GetAllInstances returns a snapshot of the instance map.
func (m *Manager) GetAllInstances() map[string]*core.Instance {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*core.Instance, len(m.instances))
	for name, inst := range m.instances {
		out[name] = inst
	}
	return out
}

// checkTransition looks up the instance and validates that moving to target
// is legal right now. A nil instance return with nil error means the
// operation is a no-op (already in the desired state, or stopping a module
// that is not started).
func (m *Manager) checkTransition(name string, target core.State) (*core.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[name]
	if !ok {
		return nil, &core.NotFoundError{Name: name}
	}

	current := inst.State()
	if current == target {
		m.logger.Debug("module already in target state", "module", name, "state", target)
		return nil, nil
	}

	if target == core.StateStopped && current != core.StateStarted {
		// Stopping anything that is not running succeeds silently.
		m.logger.Debug("module not started, skipping stop", "module", name, "state", current)
		return nil, nil
	}

	if !core.IsValidTransition(current, target) {
		return nil, &core.StateError{
			Name:     name,
			Current:  current,
			Expected: expectedFor(target),
		}
	}
	return inst, nil
}

// expectedFor lists the states from which target is reachable.
func expectedFor(target core.State) []core.State {
	var out []core.State
	for _, from := range core.AllStates() {
		if core.IsValidTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

func (m *Manager) transition(ctx context.Context, name string, target core.State, op string, hook func(context.Context) error) (bool, error) {
	inst, err := m.checkTransition(name, target)
	if err != nil {
		m.record(func(mx Metrics) { mx.ModuleFailed(name, op) })
		m.publish(events.Event{Type: events.TypeFailed, Module: name, Op: op})
		return false, err
	}
	if inst == nil {
		return false, nil
	}

	from := inst.State()

	// Hook runs outside the lock; errors propagate unmodified and the
	// module stays in its prior state.
	if err := hook(ctx); err != nil {
		m.logger.Error("module hook failed", "module", name, "op", op, "error", err)
		m.record(func(mx Metrics) { mx.ModuleFailed(name, op) })
		m.publish(events.Event{Type: events.TypeFailed, Module: name, Op: op})
		return false, err
	}

	m.mu.Lock()
	inst.SetState(target)
	m.mu.Unlock()

	m.logger.Info("module state changed", "module", name, "from", from, "to", target)
	m.record(func(mx Metrics) { mx.StateChanged(name, from, target) })
	m.publish(events.Event{Type: events.TypeStateChanged, Module: name, From: from, To: target})
	return true, nil
}

// StartModule starts the named module. Starting an already-started module
// is a successful no-op; the start hook never runs twice.
func (m *Manager) StartModule(ctx context.Context, name string) error {
	changed, err := m.transition(ctx, name, core.StateStarted, "start", func(ctx context.Context) error {
		return m.instanceHooks(name).Start(ctx)
	})
	if changed {
		m.record(func(mx Metrics) { mx.ModuleStarted(name) })
	}
	return err
}

// StopModule stops the named module. Stopping a module that is not started
// is a successful no-op.
func (m *Manager) StopModule(ctx context.Context, name string) error {
	changed, err := m.transition(ctx, name, core.StateStopped, "stop", func(ctx context.Context) error {
		return m.instanceHooks(name).Stop(ctx)
	})
	if changed {
		m.record(func(mx Metrics) { mx.ModuleStopped(name) })
	}
	return err
}

// BootstrapModule initializes the named module without starting it.
func (m *Manager) BootstrapModule(ctx context.Context, name string) error {
	_, err := m.transition(ctx, name, core.StateInitialized, "bootstrap", func(ctx context.Context) error {
		return m.instanceHooks(name).Bootstrap(ctx)
	})
	return err
}

// Transition moves the named module to target without invoking any hook.
// Used for the administrative states (installed, disabled, uninstalled)
// that have no module behavior attached.
func (m *Manager) Transition(name string, target core.State) error {
	inst, err := m.checkTransition(name, target)
	if err != nil {
		return err
	}
	if inst == nil {
		return nil
	}

	from := inst.State()
	m.mu.Lock()
	inst.SetState(target)
	m.mu.Unlock()

	m.logger.Info("module state changed", "module", name, "from", from, "to", target)
	m.record(func(mx Metrics) { mx.StateChanged(name, from, target) })
	m.publish(events.Event{Type: events.TypeStateChanged, Module: name, From: from, To: target})
	return nil
}

func (m *Manager) instanceHooks(name string) core.Hooks {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.instances[name]; ok {
		return inst.Hooks()
	}
	return core.Base{}
}

func (m *Manager) record(f func(Metrics)) {
	if m.metrics != nil {
		f(m.metrics)
	}
}

func (m *Manager) publish(evt events.Event) {
	if m.bus != nil {
		m.bus.Publish(evt)
	}
}
