// Package game owns the round state machine: question selection, hint and
// timeout scheduling, first-correct-answer resolution, and scoring.
package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/catalog"
	"github.com/mitjasha/Qui3zBot/internal/domain"
	"github.com/mitjasha/Qui3zBot/internal/hint"
	"github.com/mitjasha/Qui3zBot/internal/textnorm"
)

// ScoreLedger records scored answers across the three aggregation scopes and
// serves leaderboards. One correct answer produces one write to each scope
// with the same delta.
type ScoreLedger interface {
	AddLifetime(ctx context.Context, channel, userID string, delta int) error
	AddSession(ctx context.Context, sessionID, userID string, delta int) error
	AppendEvent(ctx context.Context, ev domain.ScoreEvent) error
	TopLifetime(ctx context.Context, channel string, limit int) ([]domain.ScoreRow, error)
	TopSession(ctx context.Context, sessionID string, limit int) ([]domain.ScoreRow, error)
	TopWindow(ctx context.Context, channel string, from, to time.Time, limit int) ([]domain.ScoreRow, error)
	UpsertUser(ctx context.Context, channel, userID, displayName string) error
}

// SessionStore persists game sessions as historical records.
type SessionStore interface {
	Create(ctx context.Context, channel, label string, roundTotal int) (string, error)
	End(ctx context.Context, sessionID string) error
}

// StateStore persists the round state snapshot and the channel binding. The
// engine is the single writer; the store is a durable mirror, not a lock.
type StateStore interface {
	LoadState(ctx context.Context) (domain.RoundState, error)
	SaveState(ctx context.Context, st domain.RoundState) error
	BoundChannel(ctx context.Context) (string, error)
	Bind(ctx context.Context, channel string) error
}

// Publisher delivers announcements to the audience of a channel.
// Fire-and-forget: a failed publish is logged and the game keeps going.
type Publisher interface {
	Publish(ctx context.Context, channel, text string) error
}

// Config carries the static tuning for one engine.
type Config struct {
	QuestionTTL  time.Duration
	PauseBetween time.Duration
	MaxPoints    int
	MinPoints    int
	BoardLimit   int
}

func (c Config) withDefaults() Config {
	if c.QuestionTTL <= 0 {
		c.QuestionTTL = 25 * time.Second
	}
	if c.PauseBetween <= 0 {
		c.PauseBetween = 4 * time.Second
	}
	if c.MaxPoints <= 0 {
		c.MaxPoints = hint.MaxPoints
	}
	if c.MinPoints <= 0 {
		c.MinPoints = hint.MinPoints
	}
	if c.BoardLimit <= 0 {
		c.BoardLimit = 10
	}
	return c
}

const maxRounds = 50

// Engine serializes every mutation of the round state through one mutex, so
// the two tickers and the answer path can never interleave a hint, a
// timeout, and a winner claim for the same question.
type Engine struct {
	cfg      Config
	catalog  *catalog.Catalog
	bags     *catalog.Bags
	ledger   ScoreLedger
	sessions SessionStore
	states   StateStore
	pub      Publisher
	now      func() time.Time
	after    func(d time.Duration, f func()) *time.Timer

	mu      sync.Mutex
	st      domain.RoundState
	channel string
	// epoch invalidates pending pause timers: it is bumped by every advance
	// and every reset, so a timer scheduled before a stop or an earlier
	// advance can never act on the state that replaced it.
	epoch uint64
}

// New builds an engine over the catalog and collaborator stores.
func New(cfg Config, cat *catalog.Catalog, ledger ScoreLedger, sessions SessionStore, states StateStore, pub Publisher) *Engine {
	return NewWithClock(cfg, cat, ledger, sessions, states, pub, time.Now)
}

// NewWithClock is test-only for deterministic deadlines.
func NewWithClock(cfg Config, cat *catalog.Catalog, ledger ScoreLedger, sessions SessionStore, states StateStore, pub Publisher, now func() time.Time) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		catalog:  cat,
		bags:     catalog.NewBags(cat),
		ledger:   ledger,
		sessions: sessions,
		states:   states,
		pub:      pub,
		now:      now,
		after:    time.AfterFunc,
	}
}

// Init restores the channel binding and resets any stale round left over
// from a previous process to the inactive baseline.
func (e *Engine) Init(ctx context.Context) error {
	channel, err := e.states.BoundChannel(ctx)
	if err != nil {
		return fmt.Errorf("load bound channel: %w", err)
	}
	st, err := e.states.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load round state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.channel = channel
	if st.Active || st.SessionID != "" {
		if st.SessionID != "" {
			if err := e.sessions.End(ctx, st.SessionID); err != nil {
				log.Printf("game: end stale session %s: %v", st.SessionID, err)
			}
		}
		e.resetLocked(ctx)
		return nil
	}
	e.st = st
	return nil
}

// Bind records the channel all announcements and inbound text belong to.
func (e *Engine) Bind(ctx context.Context, channel string) error {
	if err := e.states.Bind(ctx, channel); err != nil {
		return fmt.Errorf("bind channel: %w", err)
	}
	e.mu.Lock()
	e.channel = channel
	e.mu.Unlock()
	return nil
}

// Channel returns the bound channel, or "" when unbound.
func (e *Engine) Channel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.channel
}

// State returns a snapshot of the round state.
func (e *Engine) State() domain.RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Tags lists the playable tags, excluding the reserved "all".
func (e *Engine) Tags() []string { return e.catalog.Tags() }

// Categories lists the known categories.
func (e *Engine) Categories() []string { return e.catalog.Categories() }

// ResolveScope maps a user-supplied scope name onto the catalog: the
// reserved "all", a known tag, or a known category, in that order.
func (e *Engine) ResolveScope(name string) (domain.Scope, error) {
	if name == "" || name == catalog.TagAll {
		return domain.Scope{Kind: domain.ScopeAll}, nil
	}
	if e.catalog.HasTag(name) {
		return domain.Scope{Kind: domain.ScopeTag, Key: name}, nil
	}
	if e.catalog.HasCategory(name) {
		return domain.Scope{Kind: domain.ScopeCategory, Key: name}, nil
	}
	return domain.Scope{}, domain.ErrUnknownScope
}

// StartGame opens a session and posts the first question. rounds 0 means an
// unbounded game; anything above the cap is clamped.
func (e *Engine) StartGame(ctx context.Context, scope domain.Scope, rounds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.channel == "" {
		return domain.ErrNotBound
	}
	if e.st.Active {
		return domain.ErrGameRunning
	}
	if scope.Kind == domain.ScopeTag && !e.catalog.HasTag(scope.Key) {
		return domain.ErrUnknownScope
	}
	if rounds < 0 {
		rounds = 0
	}
	if rounds > maxRounds {
		rounds = maxRounds
	}

	sessionID, err := e.sessions.Create(ctx, e.channel, scope.Label(), rounds)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	e.st = domain.RoundState{
		Active:     true,
		Scope:      scope,
		RoundTotal: rounds,
		SessionID:  sessionID,
	}
	e.saveLocked(ctx)

	roundsLabel := "∞"
	if rounds > 0 {
		roundsLabel = fmt.Sprintf("%d", rounds)
	}
	e.publishLocked(ctx,
		fmt.Sprintf("🎮 Game on!\n📚 %s | 🔢 Rounds: %s\n✍️ Type your answers in the chat. First correct answer scores.",
			scope.Label(), roundsLabel))

	e.advanceLocked(ctx)
	return nil
}

// StopGame closes the session, announces its leaderboard, and resets to the
// inactive baseline. Any pending hint, timeout, or scheduled next question
// is invalidated atomically with the reset.
func (e *Engine) StopGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.st.Active && e.st.SessionID == "" {
		return domain.ErrNoGame
	}

	sessionID := e.st.SessionID
	if sessionID != "" {
		if err := e.sessions.End(ctx, sessionID); err != nil {
			log.Printf("game: end session %s: %v", sessionID, err)
		}
	}
	e.resetLocked(ctx)

	if sessionID != "" {
		rows, err := e.ledger.TopSession(ctx, sessionID, e.cfg.BoardLimit)
		if err != nil {
			log.Printf("game: session board %s: %v", sessionID, err)
			e.publishLocked(ctx, "🛑 Game stopped.")
			return nil
		}
		e.publishLocked(ctx, formatBoard("🛑 Game stopped\n🏆 Standings", rows))
	} else {
		e.publishLocked(ctx, "🛑 Game stopped.")
	}
	return nil
}

// Skip abandons the current question without a winner and moves on after
// the usual pause.
func (e *Engine) Skip(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.st.Active {
		return domain.ErrNoGame
	}
	if e.st.QuestionID == "" || e.st.WinnerID != "" {
		// Between questions already; the next one is on its way.
		return nil
	}

	e.publishLocked(ctx, "⏭️ Skipping the question.")
	e.resolveQuestionLocked(ctx)
	e.scheduleAdvanceLocked()
	return nil
}

// Submit resolves one inbound answer attempt. It reports whether the attempt
// claimed the win. Input from channels other than the bound one, empty-after-
// normalization text, attempts while idle, and attempts after a winner is
// locked are all silently ignored.
func (e *Engine) Submit(ctx context.Context, channel, userID, displayName, text string) (bool, error) {
	e.mu.Lock()
	if e.channel == "" || channel != e.channel {
		e.mu.Unlock()
		return false, nil
	}
	e.mu.Unlock()

	if err := e.ledger.UpsertUser(ctx, channel, userID, displayName); err != nil {
		log.Printf("game: upsert user %s: %v", userID, err)
	}

	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.st.Active || e.st.WinnerID != "" || e.st.QuestionID == "" {
		return false, nil
	}

	q, err := e.catalog.Get(e.st.QuestionID)
	if err != nil {
		log.Printf("game: active question %s missing from catalog", e.st.QuestionID)
		return false, nil
	}
	if _, ok := catalog.AcceptedForms(q)[normalized]; !ok {
		return false, nil
	}

	// Claim the win. From here on no hint or timeout can fire for this
	// question: they re-check WinnerID and the cleared timestamps under
	// this same lock.
	level := e.st.HintLevel
	points := hint.Points(level, e.cfg.MaxPoints, e.cfg.MinPoints)
	e.st.WinnerID = userID
	e.st.Deadline = time.Time{}
	e.st.NextHint = time.Time{}
	e.saveLocked(ctx)

	e.recordScoreLocked(ctx, userID, points)

	name := displayName
	if name == "" {
		name = userID
	}
	e.publishLocked(ctx, fmt.Sprintf(
		"✅ %s answered first!\n💎 +%d points (hints used: %d)\n🎯 Answer: %s",
		name, points, level, q.DisplayAnswer()))

	e.scheduleAdvanceLocked()
	return true, nil
}

// recordScoreLocked writes the same delta to all three score scopes. A
// failed write is logged and the win stands; the delta may be lost.
func (e *Engine) recordScoreLocked(ctx context.Context, userID string, points int) {
	if err := e.ledger.AddLifetime(ctx, e.channel, userID, points); err != nil {
		log.Printf("game: lifetime score write: %v", err)
	}
	if e.st.SessionID != "" {
		if err := e.ledger.AddSession(ctx, e.st.SessionID, userID, points); err != nil {
			log.Printf("game: session score write: %v", err)
		}
	}
	if err := e.ledger.AppendEvent(ctx, domain.ScoreEvent{
		At:        e.now(),
		Channel:   e.channel,
		SessionID: e.st.SessionID,
		UserID:    userID,
		Delta:     points,
		Reason:    "correct",
	}); err != nil {
		log.Printf("game: score event write: %v", err)
	}
}

// advanceLocked posts the next question, or finishes the game when the
// round total has been reached or the draw scope is exhausted.
func (e *Engine) advanceLocked(ctx context.Context) {
	e.epoch++

	if e.st.RoundTotal > 0 && e.st.RoundCurrent >= e.st.RoundTotal {
		e.finishLocked(ctx, "🏁 Game over\n🏆 Final standings")
		return
	}

	q, err := e.bags.Next(e.st.Scope)
	if err != nil {
		e.publishLocked(ctx, "No questions available for this game.")
		e.finishLocked(ctx, "🏁 Game over\n🏆 Final standings")
		return
	}

	display := q.DisplayAnswer()
	plan := hint.ForAnswer(display, e.cfg.QuestionTTL)
	now := e.now()

	e.st.QuestionID = q.ID
	e.st.WinnerID = ""
	e.st.RoundCurrent++
	e.st.Deadline = now.Add(e.cfg.QuestionTTL)
	e.st.HintLevel = 0
	e.st.HintTotal = plan.Total
	e.st.HintAnswer = display
	e.st.NextHint = time.Time{}
	if plan.Total > 0 {
		e.st.NextHint = now.Add(plan.Interval)
	}
	e.saveLocked(ctx)

	header := fmt.Sprintf("❓ Question %d", e.st.RoundCurrent)
	if e.st.RoundTotal > 0 {
		header = fmt.Sprintf("❓ Question %d/%d", e.st.RoundCurrent, e.st.RoundTotal)
	}
	e.publishLocked(ctx, fmt.Sprintf(
		"%s\n%s\n\n📚 %s | ⏳ %d sec\n💎 %d points with no hints, one less per hint",
		header, q.Prompt, e.st.Scope.Label(), int(e.cfg.QuestionTTL/time.Second), e.cfg.MaxPoints))
}

// finishLocked ends the session, posts its leaderboard, and resets.
func (e *Engine) finishLocked(ctx context.Context, title string) {
	sessionID := e.st.SessionID
	if sessionID != "" {
		if err := e.sessions.End(ctx, sessionID); err != nil {
			log.Printf("game: end session %s: %v", sessionID, err)
		}
	}
	e.resetLocked(ctx)

	if sessionID == "" {
		e.publishLocked(ctx, "🏁 Game over")
		return
	}
	rows, err := e.ledger.TopSession(ctx, sessionID, e.cfg.BoardLimit)
	if err != nil {
		log.Printf("game: session board %s: %v", sessionID, err)
		e.publishLocked(ctx, "🏁 Game over")
		return
	}
	e.publishLocked(ctx, formatBoard(title, rows))
}

// resolveQuestionLocked clears the per-question fields after a timeout or a
// skip so late answers during the pause cannot score.
func (e *Engine) resolveQuestionLocked(ctx context.Context) {
	e.st.QuestionID = ""
	e.st.Deadline = time.Time{}
	e.st.NextHint = time.Time{}
	e.st.HintLevel = 0
	e.st.HintTotal = 0
	e.st.HintAnswer = ""
	e.saveLocked(ctx)
}

// resetLocked returns to the inactive baseline and invalidates pending
// timers.
func (e *Engine) resetLocked(ctx context.Context) {
	e.epoch++
	e.st = domain.RoundState{}
	e.saveLocked(ctx)
}

// scheduleAdvanceLocked arms the pause-then-next-question timer. The timer
// re-checks the epoch under the lock, so a stop or an earlier advance in the
// meantime makes it a no-op.
func (e *Engine) scheduleAdvanceLocked() {
	ep := e.epoch
	e.after(e.cfg.PauseBetween, func() {
		ctx := context.Background()
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.epoch != ep || e.st.SessionID == "" {
			return
		}
		e.advanceLocked(ctx)
	})
}

func (e *Engine) saveLocked(ctx context.Context) {
	if err := e.states.SaveState(ctx, e.st); err != nil {
		log.Printf("game: save round state: %v", err)
	}
}

func (e *Engine) publishLocked(ctx context.Context, text string) {
	if e.channel == "" {
		return
	}
	if err := e.pub.Publish(ctx, e.channel, text); err != nil {
		log.Printf("game: publish: %v", err)
	}
}
