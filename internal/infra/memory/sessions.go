package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

// SessionStore keeps game sessions in memory.
type SessionStore struct {
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]domain.GameSession
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic timestamps.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		now:      now,
		sessions: make(map[string]domain.GameSession),
	}
}

func (s *SessionStore) Create(_ context.Context, channel, label string, roundTotal int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.sessions[id] = domain.GameSession{
		ID:         id,
		Channel:    channel,
		Label:      label,
		RoundTotal: roundTotal,
		StartedAt:  s.now(),
	}
	return id, nil
}

func (s *SessionStore) End(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	if session.EndedAt.IsZero() {
		session.EndedAt = s.now()
		s.sessions[sessionID] = session
	}
	return nil
}

// Get returns a session record, test-only.
func (s *SessionStore) Get(sessionID string) (domain.GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}
