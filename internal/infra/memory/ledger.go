// Package memory provides in-memory implementations of the game's
// persistence collaborators, used when no backends are configured and in
// tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

type scoreKey struct {
	scope  string
	userID string
}

// Ledger is an in-memory score ledger covering all three aggregation
// scopes: lifetime totals, per-session totals, and the timestamped event
// log for windowed boards.
type Ledger struct {
	mu       sync.RWMutex
	lifetime map[scoreKey]int
	session  map[scoreKey]int
	events   []domain.ScoreEvent
	names    map[scoreKey]string
}

func NewLedger() *Ledger {
	return &Ledger{
		lifetime: make(map[scoreKey]int),
		session:  make(map[scoreKey]int),
		names:    make(map[scoreKey]string),
	}
}

func (l *Ledger) AddLifetime(_ context.Context, channel, userID string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lifetime[scoreKey{channel, userID}] += delta
	return nil
}

func (l *Ledger) AddSession(_ context.Context, sessionID, userID string, delta int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session[scoreKey{sessionID, userID}] += delta
	return nil
}

func (l *Ledger) AppendEvent(_ context.Context, ev domain.ScoreEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *Ledger) UpsertUser(_ context.Context, channel, userID, displayName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names[scoreKey{channel, userID}] = displayName
	return nil
}

func (l *Ledger) TopLifetime(_ context.Context, channel string, limit int) ([]domain.ScoreRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.topLocked(l.lifetime, channel, channel, limit), nil
}

func (l *Ledger) TopSession(_ context.Context, sessionID string, limit int) ([]domain.ScoreRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	// Display names are keyed by channel; resolve it from the event log.
	channel := ""
	for _, ev := range l.events {
		if ev.SessionID == sessionID {
			channel = ev.Channel
			break
		}
	}
	return l.topLocked(l.session, sessionID, channel, limit), nil
}

func (l *Ledger) TopWindow(_ context.Context, channel string, from, to time.Time, limit int) ([]domain.ScoreRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totals := make(map[scoreKey]int)
	for _, ev := range l.events {
		if ev.Channel != channel {
			continue
		}
		if ev.At.Before(from) || !ev.At.Before(to) {
			continue
		}
		totals[scoreKey{channel, ev.UserID}] += ev.Delta
	}
	return l.topLocked(totals, channel, channel, limit), nil
}

// Events returns a copy of the event log, test-only.
func (l *Ledger) Events() []domain.ScoreEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ScoreEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Ledger) topLocked(totals map[scoreKey]int, scope, nameScope string, limit int) []domain.ScoreRow {
	rows := make([]domain.ScoreRow, 0, len(totals))
	for key, points := range totals {
		if key.scope != scope {
			continue
		}
		rows = append(rows, domain.ScoreRow{
			UserID:      key.userID,
			DisplayName: l.names[scoreKey{nameScope, key.userID}],
			Points:      points,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
