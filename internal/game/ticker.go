package game

import (
	"context"
	"fmt"
	"time"

	"github.com/mitjasha/Qui3zBot/internal/hint"
)

// tickInterval is how often the two background loops re-read the state.
const tickInterval = time.Second

// RunHintTicker polls for due hints until the context is canceled.
func (e *Engine) RunHintTicker(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.hintTick(ctx)
		}
	}
}

// RunTimeoutTicker polls for expired questions until the context is
// canceled.
func (e *Engine) RunTimeoutTicker(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.timeoutTick(ctx)
		}
	}
}

// hintTick reveals the next hint when it is due. Everything is re-checked
// under the lock: an answer claimed between ticks clears NextHint, which
// makes this a no-op.
func (e *Engine) hintTick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.st
	if !st.Active || st.WinnerID != "" || st.HintAnswer == "" {
		return
	}
	if st.HintTotal == 0 || st.HintLevel >= st.HintTotal {
		return
	}
	if st.NextHint.IsZero() || e.now().Before(st.NextHint) {
		return
	}

	level := st.HintLevel + 1
	revealed := hint.RevealPositions(st.HintAnswer, st.QuestionID, level, st.HintTotal)
	text := hint.Render(st.HintAnswer, revealed)
	points := hint.Points(level, e.cfg.MaxPoints, e.cfg.MinPoints)

	e.publishLocked(ctx, fmt.Sprintf("💡 Hint %d/%d\n%s\n💎 Worth now: %d", level, st.HintTotal, text, points))

	st.HintLevel = level
	st.NextHint = time.Time{}
	if level < st.HintTotal {
		plan := hint.ForAnswer(st.HintAnswer, e.cfg.QuestionTTL)
		st.NextHint = e.now().Add(plan.Interval)
	}
	e.saveLocked(ctx)
}

// timeoutTick expires the question when the deadline has passed with no
// winner: discloses the answer, then schedules the next question.
func (e *Engine) timeoutTick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.st
	if !st.Active || st.WinnerID != "" {
		return
	}
	if st.Deadline.IsZero() || e.now().Before(st.Deadline) {
		return
	}

	answer := st.HintAnswer
	if answer == "" {
		answer = "?"
	}
	e.publishLocked(ctx, fmt.Sprintf("⌛ Time's up!\n✅ The answer was: %s", answer))

	e.resolveQuestionLocked(ctx)
	e.scheduleAdvanceLocked()
}
