package manager_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castellan/castellan/core"
	"github.com/castellan/castellan/discovery"
	"github.com/castellan/castellan/manager"
	"github.com/castellan/castellan/store"
)

type orderHooks struct {
	core.Base
	name string
	rec  *orderRecorder
	fail error
}

type orderRecorder struct {
	mu      sync.Mutex
	started []string
	stopped []string
}

func (h *orderHooks) Start(ctx context.Context) error {
	if h.fail != nil {
		return h.fail
	}
	h.rec.mu.Lock()
	h.rec.started = append(h.rec.started, h.name)
	h.rec.mu.Unlock()
	return nil
}

func (h *orderHooks) Stop(ctx context.Context) error {
	h.rec.mu.Lock()
	h.rec.stopped = append(h.rec.stopped, h.name)
	h.rec.mu.Unlock()
	return nil
}

func desc(name string, deps ...string) core.Descriptor {
	return core.Descriptor{Name: name, Version: "1.0.0", Dependencies: deps}
}

// newTestManager wires a manager over static descriptors with hooks that
// record start/stop order. failures maps module names to injected start
// errors.
func newTestManager(t *testing.T, rec *orderRecorder, failures map[string]error, descs ...core.Descriptor) *manager.Manager {
	t.Helper()

	src, err := discovery.NewStaticSource(descs...)
	require.NoError(t, err)

	factory := func(d core.Descriptor) (core.Hooks, error) {
		return &orderHooks{name: d.Name, rec: rec, fail: failures[d.Name]}, nil
	}

	m, err := manager.New(src, manager.WithFactory(factory))
	require.NoError(t, err)
	require.NoError(t, m.Refresh(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func TestManagerLoad_ResolvesDependencyClosure(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil,
		desc("db", "config"),
		desc("config"),
		desc("api", "db"),
	)

	inst, err := m.Load(context.Background(), "api", false)
	require.NoError(t, err)
	assert.Equal(t, "api", inst.Name())

	for _, name := range []string{"config", "db", "api"} {
		assert.NotNil(t, m.Instance(name), "closure member %s should be loaded", name)
	}
}

func TestManagerLoad_IdempotentWithoutForce(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("solo"))

	first, err := m.Load(context.Background(), "solo", false)
	require.NoError(t, err)
	second, err := m.Load(context.Background(), "solo", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestManagerLoad_ForceReplacesInstance(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("solo"))

	first, err := m.Load(context.Background(), "solo", false)
	require.NoError(t, err)
	second, err := m.Load(context.Background(), "solo", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestManagerLoad_UnknownModule(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("known"))

	_, err := m.Load(context.Background(), "ghost", false)
	var depErr *core.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, "ghost", depErr.Module)
}

func TestManagerLoad_InvalidName(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("known"))

	_, err := m.Load(context.Background(), "no spaces", false)
	require.Error(t, err)
}

// Load must work from a single view of the available modules; an ignore
// or refresh racing with it may make the whole load fail, but must never
// leave a half-instantiated closure or a nameless instance behind.
func TestManagerLoad_ConcurrentIgnoreToggle(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil,
		desc("dep"),
		desc("app", "dep"),
	)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			require.NoError(t, m.Ignore("dep"))
			require.NoError(t, m.Unignore("dep"))
		}
	}()

	for i := 0; i < 500; i++ {
		inst, err := m.Load(context.Background(), "app", true)
		if err != nil {
			// The dependency was ignored at resolution time; that is the
			// legal outcome of the race.
			var depErr *core.DependencyError
			require.ErrorAs(t, err, &depErr, "iteration %d", i)
			continue
		}
		require.NotNil(t, inst, "iteration %d: nil instance without error", i)
		require.Equal(t, "app", inst.Name())

		for name := range m.Instances() {
			require.NotEmpty(t, name, "iteration %d: instance under empty name", i)
		}
	}
	close(done)
	wg.Wait()
}

func TestManagerStart_DependenciesFirst(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil,
		desc("db", "config"),
		desc("config"),
		desc("api", "db"),
	)

	_, err := m.Load(context.Background(), "api", false)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), "api"))

	assert.Equal(t, []string{"config", "db", "api"}, rec.started)
	assert.Equal(t, core.StateStarted, m.Instance("config").State())
}

func TestManagerStart_NotLoaded(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("known"))

	err := m.Start(context.Background(), "known")
	var nf *core.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestManagerStart_DependencyFailureStopsPrefix(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	boom := errors.New("db unreachable")
	m := newTestManager(t, rec, map[string]error{"db": boom},
		desc("db"),
		desc("api", "db"),
	)

	_, err := m.Load(context.Background(), "api", false)
	require.NoError(t, err)

	err = m.Start(context.Background(), "api")
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, rec.started, "api")
	assert.Equal(t, core.StateLoaded, m.Instance("api").State())
}

func TestManagerStopAll_ReverseOrder(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil,
		desc("db", "config"),
		desc("config"),
		desc("api", "db"),
	)

	_, err := m.Load(context.Background(), "api", false)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), "api"))

	res := m.StopAll(context.Background())
	assert.Equal(t, 3, res.Succeeded)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"api", "db", "config"}, rec.stopped)
}

func TestManagerStartAll_CountsFailures(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	boom := errors.New("refused")
	m := newTestManager(t, rec, map[string]error{"bad": boom},
		desc("good"),
		desc("bad"),
		desc("also-good"),
	)

	res := m.LoadAll(context.Background())
	require.Equal(t, 3, res.Succeeded)

	started := m.StartAll(context.Background())
	assert.Equal(t, 2, started.Succeeded)
	assert.Equal(t, 1, started.Failed)
	assert.Equal(t, core.StateLoaded, m.Instance("bad").State())
}

func TestManagerUnload_StopsAndRemoves(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("solo"))

	_, err := m.Load(context.Background(), "solo", false)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background(), "solo"))

	require.NoError(t, m.Unload(context.Background(), "solo"))
	assert.Nil(t, m.Instance("solo"))
	assert.Equal(t, []string{"solo"}, rec.stopped)
}

func TestManagerIgnore_RemovesFromAvailable(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("a"), desc("b"))

	require.NoError(t, m.Ignore("b"))
	assert.Equal(t, []string{"a"}, m.Available())
	assert.True(t, m.IsIgnored("b"))

	_, err := m.Load(context.Background(), "b", false)
	require.Error(t, err)

	require.NoError(t, m.Unignore("b"))
	assert.Equal(t, []string{"a", "b"}, m.Available())
}

func TestManagerIgnore_PersistsToStore(t *testing.T) {
	t.Parallel()
	src, err := discovery.NewStaticSource(desc("a"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	m, err := manager.New(src, manager.WithStateStore(st))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Ignore("a"))

	persisted, err := st.LoadIgnored()
	require.NoError(t, err)
	assert.Contains(t, persisted, "a")

	// A fresh manager over the same store restores the ignore set.
	m2, err := manager.New(src, manager.WithStateStore(st))
	require.NoError(t, err)
	defer m2.Close()
	assert.True(t, m2.IsIgnored("a"))
}

func TestManagerAdminTransitions(t *testing.T) {
	t.Parallel()
	src, err := discovery.NewStaticSource(desc("svc"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	m, err := manager.New(src, manager.WithStateStore(st))
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Refresh(context.Background()))

	_, err = m.Load(context.Background(), "svc", false)
	require.NoError(t, err)

	require.NoError(t, m.Disable("svc"))
	assert.Equal(t, core.StateDisabled, m.Instance("svc").State())

	err = m.Start(context.Background(), "svc")
	var stateErr *core.StateError
	require.ErrorAs(t, err, &stateErr)

	require.NoError(t, m.Enable("svc"))
	assert.Equal(t, core.StateInstalled, m.Instance("svc").State())

	saved, ok, err := st.LoadState("svc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StateInstalled, saved)

	require.NoError(t, m.Uninstall("svc"))
	assert.Nil(t, m.Instance("svc"))
	saved, ok, err = st.LoadState("svc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StateUninstalled, saved)
}

func TestManagerLoad_RestoresPersistedDisable(t *testing.T) {
	t.Parallel()
	src, err := discovery.NewStaticSource(desc("svc"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	require.NoError(t, st.SaveState("svc", core.StateDisabled))

	m, err := manager.New(src, manager.WithStateStore(st))
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Refresh(context.Background()))

	inst, err := m.Load(context.Background(), "svc", false)
	require.NoError(t, err)
	assert.Equal(t, core.StateDisabled, inst.State())
}

func TestManagerRefresh_KeepsLoadedInstances(t *testing.T) {
	t.Parallel()
	rec := &orderRecorder{}
	m := newTestManager(t, rec, nil, desc("solo"))

	inst, err := m.Load(context.Background(), "solo", false)
	require.NoError(t, err)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Same(t, inst, m.Instance("solo"))
}
