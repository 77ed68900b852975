package domain

import "errors"

var (
	// ErrQuestionNotFound indicates a question id is not in the catalog.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when a draw scope has no eligible questions.
	ErrNoQuestions = errors.New("no questions available")
	// ErrGameRunning is returned when a game is already in progress.
	ErrGameRunning = errors.New("game already running")
	// ErrNoGame is returned by operations that require a running game.
	ErrNoGame = errors.New("no game running")
	// ErrUnknownScope indicates a start request named a tag or category the
	// catalog does not have.
	ErrUnknownScope = errors.New("unknown tag or category")
	// ErrNotBound is returned when no channel has been bound yet.
	ErrNotBound = errors.New("no channel bound")
)
