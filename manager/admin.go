package manager

import (
	"github.com/castellan/castellan/core"
)

// Ignore adds name to the ignore set and removes it from the available
// view. Live instances are unaffected; ignoring only stops future loads.
func (m *Manager) Ignore(name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}

	m.mu.Lock()
	m.ignored[name] = struct{}{}
	m.rebuildAvailableLocked()
	ignored := m.ignoredSnapshotLocked()
	m.mu.Unlock()

	m.logger.Info("module ignored", "module", name)
	m.persistIgnored(ignored)
	return nil
}

// Unignore removes name from the ignore set; if it was discovered it
// becomes available again without a new discovery pass.
func (m *Manager) Unignore(name string) error {
	if err := core.CheckName(name); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.ignored, name)
	m.rebuildAvailableLocked()
	ignored := m.ignoredSnapshotLocked()
	m.mu.Unlock()

	m.logger.Info("module unignored", "module", name)
	m.persistIgnored(ignored)
	return nil
}

// Ignored lists the currently ignored names.
func (m *Manager) Ignored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ignored))
	for name := range m.ignored {
		names = append(names, name)
	}
	return names
}

// IsIgnored reports whether name is on the ignore set.
func (m *Manager) IsIgnored(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ignored[name]
	return ok
}

func (m *Manager) ignoredSnapshotLocked() map[string]struct{} {
	out := make(map[string]struct{}, len(m.ignored))
	for name := range m.ignored {
		out[name] = struct{}{}
	}
	return out
}

// Install marks a loaded module installed and persists the state.
func (m *Manager) Install(name string) error {
	return m.adminTransition(name, core.StateInstalled)
}

// Enable returns a disabled module to the installed state.
func (m *Manager) Enable(name string) error {
	return m.adminTransition(name, core.StateInstalled)
}

// Disable moves a module to the disabled state, blocking further
// lifecycle progress until it is enabled again.
func (m *Manager) Disable(name string) error {
	return m.adminTransition(name, core.StateDisabled)
}

// Uninstall moves a module to its terminal state, removes the instance,
// and persists the final state.
func (m *Manager) Uninstall(name string) error {
	if err := m.adminTransition(name, core.StateUninstalled); err != nil {
		return err
	}
	m.lifecycle.RemoveInstance(name)
	return nil
}

// adminTransition applies a hook-less state change and persists it.
func (m *Manager) adminTransition(name string, target core.State) error {
	if err := core.CheckName(name); err != nil {
		return err
	}
	if err := m.lifecycle.Transition(name, target); err != nil {
		return err
	}
	m.persistState(name, target)
	return nil
}

// persistState records a state change; absent a store this is a no-op,
// and store failures are logged rather than failing the transition.
func (m *Manager) persistState(name string, state core.State) {
	if m.stateSt == nil {
		return
	}
	if err := m.stateSt.SaveState(name, state); err != nil {
		m.logger.Warn("state persistence failed", "module", name, "state", state, "error", err)
	}
}

func (m *Manager) persistDelete(name string) {
	if m.stateSt == nil {
		return
	}
	if err := m.stateSt.DeleteState(name); err != nil {
		m.logger.Warn("state delete failed", "module", name, "error", err)
	}
}

func (m *Manager) persistIgnored(ignored map[string]struct{}) {
	if m.stateSt == nil {
		return
	}
	if err := m.stateSt.SaveIgnored(ignored); err != nil {
		m.logger.Warn("ignore set persistence failed", "error", err)
	}
}
