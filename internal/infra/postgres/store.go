// Package postgres persists scores, sessions, and the user directory.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

// Store implements the score ledger and session store over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) AddLifetime(ctx context.Context, channel, userID string, delta int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scores (channel, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel, user_id)
		DO UPDATE SET points = scores.points + EXCLUDED.points`,
		channel, userID, delta)
	if err != nil {
		return fmt.Errorf("add lifetime points: %w", err)
	}
	return nil
}

func (s *Store) AddSession(ctx context.Context, sessionID, userID string, delta int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_scores (session_id, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET points = session_scores.points + EXCLUDED.points`,
		sessionID, userID, delta)
	if err != nil {
		return fmt.Errorf("add session points: %w", err)
	}
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, ev domain.ScoreEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO points_events (ts, channel, session_id, user_id, delta, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.At, ev.Channel, ev.SessionID, ev.UserID, ev.Delta, ev.Reason)
	if err != nil {
		return fmt.Errorf("append score event: %w", err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, channel, userID, displayName string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (channel, user_id, display_name, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (channel, user_id)
		DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at`,
		channel, userID, displayName)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) TopLifetime(ctx context.Context, channel string, limit int) ([]domain.ScoreRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.user_id, s.points, COALESCE(u.display_name, '')
		FROM scores s
		LEFT JOIN users u ON u.channel = s.channel AND u.user_id = s.user_id
		WHERE s.channel = $1
		ORDER BY s.points DESC, s.user_id
		LIMIT $2`,
		channel, limit)
	if err != nil {
		return nil, fmt.Errorf("top lifetime: %w", err)
	}
	return scanRows(rows)
}

func (s *Store) TopSession(ctx context.Context, sessionID string, limit int) ([]domain.ScoreRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ss.user_id, ss.points, COALESCE(u.display_name, '')
		FROM session_scores ss
		JOIN sessions se ON se.id = ss.session_id
		LEFT JOIN users u ON u.channel = se.channel AND u.user_id = ss.user_id
		WHERE ss.session_id = $1
		ORDER BY ss.points DESC, ss.user_id
		LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("top session: %w", err)
	}
	return scanRows(rows)
}

func (s *Store) TopWindow(ctx context.Context, channel string, from, to time.Time, limit int) ([]domain.ScoreRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pe.user_id, SUM(pe.delta) AS points, COALESCE(u.display_name, '')
		FROM points_events pe
		LEFT JOIN users u ON u.channel = pe.channel AND u.user_id = pe.user_id
		WHERE pe.channel = $1 AND pe.ts >= $2 AND pe.ts < $3
		GROUP BY pe.user_id, u.display_name
		ORDER BY points DESC, pe.user_id
		LIMIT $4`,
		channel, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top window: %w", err)
	}
	return scanRows(rows)
}

func (s *Store) Create(ctx context.Context, channel, label string, roundTotal int) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, channel, label, round_total, started_at)
		VALUES ($1, $2, $3, $4, now())`,
		id, channel, label, roundTotal)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *Store) End(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET ended_at = now()
		WHERE id = $1 AND ended_at IS NULL`,
		sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func scanRows(rows pgxRows) ([]domain.ScoreRow, error) {
	defer rows.Close()
	var out []domain.ScoreRow
	for rows.Next() {
		var r domain.ScoreRow
		if err := rows.Scan(&r.UserID, &r.Points, &r.DisplayName); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("score rows: %w", err)
	}
	return out, nil
}

// pgxRows is the subset of pgx.Rows scanRows needs.
type pgxRows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}
