package memory

import (
	"context"
	"sync"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

// StateStore keeps the round state snapshot and channel binding in memory.
type StateStore struct {
	mu      sync.RWMutex
	state   domain.RoundState
	channel string
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) LoadState(_ context.Context) (domain.RoundState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *StateStore) SaveState(_ context.Context, st domain.RoundState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

func (s *StateStore) BoundChannel(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel, nil
}

func (s *StateStore) Bind(_ context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channel
	return nil
}
