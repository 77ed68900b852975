package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

// LifetimeBoard formats the all-time leaderboard for the bound channel.
func (e *Engine) LifetimeBoard(ctx context.Context) (string, error) {
	channel := e.Channel()
	if channel == "" {
		return "", domain.ErrNotBound
	}
	rows, err := e.ledger.TopLifetime(ctx, channel, e.cfg.BoardLimit)
	if err != nil {
		return "", fmt.Errorf("lifetime board: %w", err)
	}
	return formatBoard("🏆 All-time leaderboard", rows), nil
}

// GameBoard formats the leaderboard of the running session.
func (e *Engine) GameBoard(ctx context.Context) (string, error) {
	e.mu.Lock()
	sessionID := e.st.SessionID
	e.mu.Unlock()
	if sessionID == "" {
		return "", domain.ErrNoGame
	}
	rows, err := e.ledger.TopSession(ctx, sessionID, e.cfg.BoardLimit)
	if err != nil {
		return "", fmt.Errorf("game board: %w", err)
	}
	return formatBoard("🏆 This game", rows), nil
}

// DayBoard formats today's leaderboard (midnight to midnight, local time of
// the engine clock).
func (e *Engine) DayBoard(ctx context.Context) (string, error) {
	from, to := DayRange(e.now())
	return e.windowBoard(ctx, "📅 Today's leaderboard", from, to)
}

// WeekBoard formats this ISO week's leaderboard (Monday 00:00 onward).
func (e *Engine) WeekBoard(ctx context.Context) (string, error) {
	from, to := WeekRange(e.now())
	return e.windowBoard(ctx, "🗓️ This week's leaderboard", from, to)
}

func (e *Engine) windowBoard(ctx context.Context, title string, from, to time.Time) (string, error) {
	channel := e.Channel()
	if channel == "" {
		return "", domain.ErrNotBound
	}
	rows, err := e.ledger.TopWindow(ctx, channel, from, to, e.cfg.BoardLimit)
	if err != nil {
		return "", fmt.Errorf("window board: %w", err)
	}
	return formatBoard(title, rows), nil
}

// DayRange is the half-open [midnight, next midnight) window around now.
func DayRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

// WeekRange is the half-open ISO week window: Monday 00:00 to the next
// Monday 00:00.
func WeekRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(now.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func formatBoard(title string, rows []domain.ScoreRow) string {
	if len(rows) == 0 {
		return title + "\nNo scores yet"
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, title)
	for i, r := range rows {
		name := r.DisplayName
		if name == "" {
			name = "User " + r.UserID
		}
		lines = append(lines, fmt.Sprintf("%d) %s: %d", i+1, name, r.Points))
	}
	return strings.Join(lines, "\n")
}
