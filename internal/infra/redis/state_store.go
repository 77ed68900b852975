// Package redis persists the round state and channel binding in Redis.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mitjasha/Qui3zBot/internal/domain"
)

const (
	stateKey   = "quiz:round_state"
	channelKey = "quiz:bound_channel"
)

// StateStore mirrors the round state record into one Redis hash, one field
// per state column, so partial field updates and inspection with HGETALL
// both stay possible. The engine remains the single writer; Redis is a
// durable mirror, not a coordination point.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

func (s *StateStore) SaveState(ctx context.Context, st domain.RoundState) error {
	fields := map[string]any{
		"active":        boolField(st.Active),
		"question_id":   st.QuestionID,
		"winner_id":     st.WinnerID,
		"deadline_ts":   timeField(st.Deadline),
		"scope_kind":    int(st.Scope.Kind),
		"scope_key":     st.Scope.Key,
		"round_total":   st.RoundTotal,
		"round_current": st.RoundCurrent,
		"session_id":    st.SessionID,
		"hint_level":    st.HintLevel,
		"hint_total":    st.HintTotal,
		"hint_answer":   st.HintAnswer,
		"next_hint_ts":  timeField(st.NextHint),
	}
	if err := s.client.HSet(ctx, stateKey, fields).Err(); err != nil {
		return fmt.Errorf("save round state: %w", err)
	}
	return nil
}

func (s *StateStore) LoadState(ctx context.Context) (domain.RoundState, error) {
	fields, err := s.client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return domain.RoundState{}, fmt.Errorf("load round state: %w", err)
	}
	if len(fields) == 0 {
		return domain.RoundState{}, nil
	}
	st := domain.RoundState{
		Active:       fields["active"] == "1",
		QuestionID:   fields["question_id"],
		WinnerID:     fields["winner_id"],
		Deadline:     parseTime(fields["deadline_ts"]),
		RoundTotal:   parseInt(fields["round_total"]),
		RoundCurrent: parseInt(fields["round_current"]),
		SessionID:    fields["session_id"],
		HintLevel:    parseInt(fields["hint_level"]),
		HintTotal:    parseInt(fields["hint_total"]),
		HintAnswer:   fields["hint_answer"],
		NextHint:     parseTime(fields["next_hint_ts"]),
	}
	st.Scope = domain.Scope{
		Kind: domain.ScopeKind(parseInt(fields["scope_kind"])),
		Key:  fields["scope_key"],
	}
	return st, nil
}

func (s *StateStore) BoundChannel(ctx context.Context) (string, error) {
	channel, err := s.client.Get(ctx, channelKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load bound channel: %w", err)
	}
	return channel, nil
}

func (s *StateStore) Bind(ctx context.Context, channel string) error {
	if err := s.client.Set(ctx, channelKey, channel, 0).Err(); err != nil {
		return fmt.Errorf("bind channel: %w", err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func timeField(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func parseTime(raw string) time.Time {
	ts := parseInt64(raw)
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

func parseInt(raw string) int {
	return int(parseInt64(raw))
}

func parseInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
