package manager

import (
	"context"
	"sort"

	"github.com/castellan/castellan/core"
)

// BatchResult summarizes a fleet-wide operation. Which modules failed is
// left to state queries; per-module errors are logged as they happen.
type BatchResult struct {
	Succeeded int
	Failed    int
}

// LoadAll loads every available module, alphabetically. Failures are
// logged and counted; one bad module never blocks the rest.
func (m *Manager) LoadAll(ctx context.Context) BatchResult {
	var res BatchResult
	for _, name := range m.Available() {
		if _, err := m.Load(ctx, name, false); err != nil {
			m.logger.Error("module load failed", "module", name, "error", err)
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	m.logger.Info("bulk load finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// StartAll starts every loaded module in global dependency order. A start
// failure skips that module but continues with the rest; dependents of a
// failed module will fail on their own if they truly need it.
func (m *Manager) StartAll(ctx context.Context) BatchResult {
	var res BatchResult
	order, err := m.globalOrder()
	if err != nil {
		m.logger.Error("dependency order unavailable, starting in name order", "error", err)
		order = m.loadedNames()
	}

	for _, name := range order {
		if !m.lifecycle.HasInstance(name) {
			continue
		}
		if err := m.lifecycle.StartModule(ctx, name); err != nil {
			m.logger.Error("module start failed", "module", name, "error", err)
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	m.logger.Info("bulk start finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

// StopAll stops every started module in reverse dependency order. Stop
// failures are logged and do not halt the shutdown sweep.
func (m *Manager) StopAll(ctx context.Context) BatchResult {
	var res BatchResult
	order, err := m.globalOrder()
	if err != nil {
		m.logger.Error("dependency order unavailable, stopping in name order", "error", err)
		order = m.loadedNames()
	}

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		inst := m.lifecycle.GetInstance(name)
		if inst == nil || inst.State() != core.StateStarted {
			continue
		}
		if err := m.lifecycle.StopModule(ctx, name); err != nil {
			m.logger.Error("module stop failed", "module", name, "error", err)
			res.Failed++
			continue
		}
		res.Succeeded++
	}
	m.logger.Info("bulk stop finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res
}

func (m *Manager) loadedNames() []string {
	instances := m.lifecycle.GetAllInstances()
	names := make([]string, 0, len(instances))
	for name := range instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
