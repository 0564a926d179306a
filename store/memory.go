package store

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/castellan/castellan/core"
)

// MemoryStore keeps states in process memory. Useful for tests and for
// embedding the coordinator where persistence across restarts is not needed.
type MemoryStore struct {
	states cmap.ConcurrentMap[string, core.State]

	mu      sync.Mutex
	ignored map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  cmap.New[core.State](),
		ignored: make(map[string]struct{}),
	}
}

func (s *MemoryStore) SaveState(name string, state core.State) error {
	s.states.Set(name, state)
	return nil
}

func (s *MemoryStore) LoadState(name string) (core.State, bool, error) {
	state, ok := s.states.Get(name)
	return state, ok, nil
}

func (s *MemoryStore) DeleteState(name string) error {
	s.states.Remove(name)
	return nil
}

func (s *MemoryStore) ListStates() (map[string]core.State, error) {
	return s.states.Items(), nil
}

func (s *MemoryStore) SaveIgnored(names map[string]struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ignored = make(map[string]struct{}, len(names))
	for n := range names {
		s.ignored[n] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) LoadIgnored() (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{}, len(s.ignored))
	for n := range s.ignored {
		out[n] = struct{}{}
	}
	return out, nil
}
