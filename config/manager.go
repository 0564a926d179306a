package config

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Manager loads configuration from its sources in order, merges the layers,
// binds and validates the result, and swaps it in atomically. Validation
// failures leave the previous configuration untouched. All methods are safe
// for concurrent use.
type Manager struct {
	sources []Source
	config  any
	binder  *Binder

	mu   sync.RWMutex
	subs []chan Event

	autoWatch bool
}

// Options tunes Manager behavior.
type Options struct {
	// AutoReload starts a watcher per source and reloads when any of them
	// reports a change.
	AutoReload bool
}

// NewManager loads the initial configuration into cfg, which must be a
// pointer to a struct using `config` and `validate` tags. Sources are
// applied in order, later ones overriding earlier ones.
func NewManager(cfg any, opts Options, sources ...Source) (*Manager, error) {
	m := &Manager{
		sources:   sources,
		config:    cfg,
		binder:    NewBinder(),
		autoWatch: opts.AutoReload,
	}

	if err := m.Reload(context.Background()); err != nil {
		return nil, err
	}
	if m.autoWatch {
		m.startWatchers()
	}
	return m, nil
}

// Reload re-reads every source, merges, binds onto a fresh instance, and
// replaces the live configuration only when the whole pipeline succeeds.
// Subscribers are notified when any field changed.
func (m *Manager) Reload(ctx context.Context) error {
	merged := map[string]any{}
	for _, src := range m.sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		vals, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("load config from %s: %w", src.Name(), err)
		}
		mergeMaps(merged, vals)
	}

	newCfg := reflect.New(reflect.TypeOf(m.config).Elem()).Interface()
	if err := m.binder.Bind(merged, newCfg); err != nil {
		return fmt.Errorf("bind config: %w", err)
	}

	m.mu.Lock()
	oldCfg := reflect.New(reflect.TypeOf(m.config).Elem()).Interface()
	reflect.ValueOf(oldCfg).Elem().Set(reflect.ValueOf(m.config).Elem())
	reflect.ValueOf(m.config).Elem().Set(reflect.ValueOf(newCfg).Elem())
	m.mu.Unlock()

	if !reflect.DeepEqual(oldCfg, newCfg) {
		m.notify(diffEvent(oldCfg, newCfg))
	}
	return nil
}

// Subscribe registers ch for change events. Sends are non-blocking; give
// the channel a buffer or events get dropped. The Manager never closes
// subscriber channels.
func (m *Manager) Subscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, ch)
}

func (m *Manager) notify(evt Event) {
	m.mu.RLock()
	subs := append([]chan Event(nil), m.subs...)
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (m *Manager) startWatchers() {
	for _, src := range m.sources {
		ch := make(chan Event)
		go func(src Source) {
			ctx := context.Background()
			if err := src.Watch(ctx, ch); err != nil {
				return
			}
			for range ch {
				_ = m.Reload(context.Background())
			}
		}(src)
	}
}
