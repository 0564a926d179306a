package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Descriptor declares a module: its unique name, version, and the names of
// the modules it depends on. Descriptors are immutable once handed to a
// resolution pass.
type Descriptor struct {
	Name         string         `yaml:"name" config:"name" validate:"required,modname"`
	Version      string         `yaml:"version" config:"version" validate:"required"`
	Dependencies []string       `yaml:"dependencies" config:"dependencies" validate:"dive,modname"`
	Optional     []string       `yaml:"optional" config:"optional" validate:"dive,modname"`
	Config       map[string]any `yaml:"config" config:"config"`
}

// Hooks is the behavior a module contributes to the lifecycle. Hooks may be
// no-ops and must not error for "already in desired state"; idempotence of
// repeated start/stop calls is the lifecycle manager's job, not the hook's.
type Hooks interface {
	// Bootstrap prepares the module without starting it.
	Bootstrap(ctx context.Context) error
	// Start begins any long-running work.
	Start(ctx context.Context) error
	// Stop gracefully stops the module.
	Stop(ctx context.Context) error
}

// Base is a Hooks implementation where every hook is a no-op. Embed it to
// implement only the hooks a module needs.
type Base struct{}

func (Base) Bootstrap(ctx context.Context) error { return nil }
func (Base) Start(ctx context.Context) error     { return nil }
func (Base) Stop(ctx context.Context) error      { return nil }

// Factory produces the behavior hooks for a descriptor. The default factory
// returns Base for every module.
type Factory func(desc Descriptor) (Hooks, error)

// NopFactory returns no-op hooks for any descriptor.
func NopFactory(Descriptor) (Hooks, error) { return Base{}, nil }

// Instance is a live module created from a descriptor and tracked through
// lifecycle states. Exactly one instance exists per loaded module name at a
// time; instances are owned by the lifecycle manager.
type Instance struct {
	id        string
	desc      Descriptor
	hooks     Hooks
	createdAt time.Time

	mu        sync.RWMutex
	state     State
	startedAt *time.Time
}

// NewInstance creates an instance in the Loaded state.
func NewInstance(desc Descriptor, hooks Hooks) *Instance {
	if hooks == nil {
		hooks = Base{}
	}
	return &Instance{
		id:        uuid.NewString(),
		desc:      desc,
		hooks:     hooks,
		createdAt: time.Now(),
		state:     StateLoaded,
	}
}

// ID is unique per instance, so a force reload is distinguishable from the
// instance it replaced even when the descriptor is identical.
func (i *Instance) ID() string { return i.id }

func (i *Instance) Descriptor() Descriptor { return i.desc }
func (i *Instance) Name() string           { return i.desc.Name }
func (i *Instance) Hooks() Hooks           { return i.hooks }
func (i *Instance) CreatedAt() time.Time   { return i.createdAt }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// StartedAt returns the time of the most recent successful start, or nil if
// the module has not been started.
func (i *Instance) StartedAt() *time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.startedAt
}

// SetState records a new state. Callers are expected to have validated the
// transition; this is the raw mutation, not the policy.
func (i *Instance) SetState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
	if s == StateStarted {
		now := time.Now()
		i.startedAt = &now
	}
}
