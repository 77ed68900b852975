package domain

import "time"

// ScopeKind selects how questions are drawn for one game.
type ScopeKind int

const (
	// ScopeAll draws from the whole catalog.
	ScopeAll ScopeKind = iota
	// ScopeTag draws from questions carrying one tag.
	ScopeTag
	// ScopeCategory draws from questions in one category.
	ScopeCategory
)

// Scope narrows the catalog for a running game.
type Scope struct {
	Kind ScopeKind
	Key  string
}

// Label is the human-readable form shown in announcements.
func (s Scope) Label() string {
	if s.Kind == ScopeAll {
		return "all"
	}
	return s.Key
}

// Question is an immutable catalog record. The first answer is the display
// answer used for hints and timeout disclosure.
type Question struct {
	ID         string
	Category   string
	Prompt     string
	Answers    []string
	Aliases    []string
	Tags       []string
	Difficulty int
	Lang       string
	Meta       map[string]any
}

// DisplayAnswer returns the canonical answer shown on timeout and used for
// hint rendering.
func (q Question) DisplayAnswer() string {
	if len(q.Answers) == 0 {
		return ""
	}
	return q.Answers[0]
}

// RoundState is the single authoritative record of what is happening in the
// bound channel right now. Zero values mean "not set": a zero Deadline means
// no deadline is running, RoundTotal 0 means an unbounded game.
type RoundState struct {
	Active       bool
	QuestionID   string
	WinnerID     string
	Deadline     time.Time
	Scope        Scope
	RoundTotal   int
	RoundCurrent int
	SessionID    string
	HintLevel    int
	HintTotal    int
	HintAnswer   string
	NextHint     time.Time
}

// GameSession is the historical record of one quiz run.
type GameSession struct {
	ID         string
	Channel    string
	Label      string
	RoundTotal int
	StartedAt  time.Time
	EndedAt    time.Time
}

// ScoreRow is one leaderboard line.
type ScoreRow struct {
	UserID      string
	DisplayName string
	Points      int
}

// ScoreEvent is a timestamped scoring record used to build windowed
// leaderboards by summation.
type ScoreEvent struct {
	At        time.Time
	Channel   string
	SessionID string
	UserID    string
	Delta     int
	Reason    string
}
