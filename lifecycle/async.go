package lifecycle

import (
	"context"

	"github.com/panjf2000/ants/v2"
)

// defaultPoolSize bounds how many module hooks may run concurrently through
// the async entry points.
const defaultPoolSize = 16

func (m *Manager) workerPool() *ants.Pool {
	m.poolOnce.Do(func() {
		// Non-blocking submit is deliberate: callers get an immediate
		// error instead of queueing behind stuck hooks.
		p, err := ants.NewPool(defaultPoolSize, ants.WithNonblocking(true))
		if err != nil {
			panic(err)
		}
		m.pool = p
	})
	return m.pool
}

func (m *Manager) submit(op func() error) <-chan error {
	done := make(chan error, 1)
	if err := m.workerPool().Submit(func() {
		done <- op()
	}); err != nil {
		done <- err
	}
	return done
}

// StartModuleAsync runs the same check-then-hook-then-update sequence as
// StartModule on a worker goroutine. The returned channel receives exactly
// one value; callers awaiting it observe the same linearizable transitions
// as the synchronous path.
func (m *Manager) StartModuleAsync(ctx context.Context, name string) <-chan error {
	return m.submit(func() error { return m.StartModule(ctx, name) })
}

// StopModuleAsync is the asynchronous counterpart of StopModule.
func (m *Manager) StopModuleAsync(ctx context.Context, name string) <-chan error {
	return m.submit(func() error { return m.StopModule(ctx, name) })
}

// BootstrapModuleAsync is the asynchronous counterpart of BootstrapModule.
func (m *Manager) BootstrapModuleAsync(ctx context.Context, name string) <-chan error {
	return m.submit(func() error { return m.BootstrapModule(ctx, name) })
}

// Close releases the async worker pool. Synchronous operations keep working
// after Close; only the Async variants are affected.
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.Release()
	}
}
