package repository

import (
	"context"
	"sync"
)

// MemoryStore keeps the follow set for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	teams []int
	saves int
}

// NewMemoryStore returns a store seeded with teams.
func NewMemoryStore(teams ...int) *MemoryStore {
	return &MemoryStore{teams: normalise(teams)}
}

func (s *MemoryStore) Load(context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.teams...), nil
}

func (s *MemoryStore) Save(_ context.Context, teams []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = normalise(teams)
	s.saves++
	return nil
}

// Saves counts Save calls.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
