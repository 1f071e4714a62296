// Package ai implements the AI collaborator port (spec §4.7): uniform
// random move selection, a greedy heuristic, and an opaque remote LLM
// collaborator, plus the scheduler that drives them from machine
// transitions. Grounded on the teacher's bot package: StrategyForDifficulty
// dispatch, and the explicit-rng deviation already used by boardsetup.
package ai

import (
	"context"
	"errors"
	"time"

	"github.com/jarlboard/server/internal/rules"
)

// ErrNoLegalMoves is returned by a Player when the current player has no
// legal move available, e.g. when every one of their pieces is boxed in.
var ErrNoLegalMoves = errors.New("ai: no legal moves available")

// MoveResult mirrors the manager's public move outcome; it lives here
// (rather than in internal/manager) so the scheduler can submit moves
// through the identical path external callers use without an import cycle
// between manager and ai.
type MoveResult struct {
	Success bool
	Events  []rules.Event
	Error   string
}

// GameSubmitter is the narrow slice of the game manager the scheduler
// needs: submit a move or starvation choice through the exact same
// pipeline a human player's request would take, and read the live state
// to decide whether a submission is still relevant.
type GameSubmitter interface {
	MakeMove(ctx context.Context, gameID, playerID string, cmd rules.MoveCommand, turnNumber *int) (MoveResult, error)
	SubmitStarvationChoice(ctx context.Context, gameID, playerID, pieceID string) error
	CurrentState(gameID string) (state *rules.GameContext, topState string, ok bool)
}

// Player is the AI port: generate a move, or make a starvation choice,
// given the current state.
type Player interface {
	GenerateMove(ctx context.Context, state *rules.GameContext, playerID string) (rules.MoveCommand, error)
	MakeStarvationChoice(state *rules.GameContext, candidates []string, playerID string) (string, error)
}

// Difficulty selects which concrete Player a config resolves to.
type Difficulty string

const (
	DifficultyRandom Difficulty = "random"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Config describes how to instantiate an AI player.
type Config struct {
	Difficulty Difficulty
	// UseLLM requests the remote-LLM collaborator; it is honored only when
	// the caller also supplies a non-empty Groq API key to New.
	UseLLM bool
}

// New resolves cfg to a concrete Player. groqAPIKey empty disables the LLM
// path regardless of cfg.UseLLM; the player then resolves by Difficulty
// alone (WeightedAI for medium and hard, RandomAI otherwise).
func New(cfg Config, groqAPIKey string, rng RandSource) Player {
	if cfg.UseLLM && groqAPIKey != "" {
		return NewGroqAI(groqAPIKey, NewRandomAI(rng))
	}
	switch cfg.Difficulty {
	case DifficultyMedium, DifficultyHard:
		return NewWeightedAI(rng)
	default:
		return NewRandomAI(rng)
	}
}

// RandSource is the subset of *rand.Rand the AI players need. Declaring it
// here (rather than depending on *math/rand.Rand directly everywhere) keeps
// random.go, heuristic.go, and tests free to substitute a fixed sequence.
type RandSource interface {
	Intn(n int) int
}

const defaultMoveTimeout = 10 * time.Second
