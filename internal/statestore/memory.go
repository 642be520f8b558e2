package statestore

import (
	"context"
	"sync"

	"GapWatchAPI/internal/gap"
)

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]gap.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]gap.State)}
}

func (s *MemoryStore) Load(_ context.Context, monitorID string) (gap.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[monitorID], nil
}

func (s *MemoryStore) Save(_ context.Context, monitorID string, st gap.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[monitorID] = st
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, monitorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, monitorID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
