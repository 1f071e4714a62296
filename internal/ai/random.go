package ai

import (
	"context"

	"github.com/jarlboard/server/internal/rules"
)

// RandomAI picks uniformly among legal moves, grounded on the teacher's
// RandomStrategy. It takes its randomness as an explicit parameter rather
// than a package-level singleton, the same deviation boardsetup makes, so
// that concurrent games never share mutable RNG state.
type RandomAI struct {
	rng RandSource
}

// NewRandomAI builds a RandomAI drawing from rng.
func NewRandomAI(rng RandSource) *RandomAI {
	return &RandomAI{rng: rng}
}

// GenerateMove implements Player.
func (a *RandomAI) GenerateMove(_ context.Context, state *rules.GameContext, playerID string) (rules.MoveCommand, error) {
	moves := rules.LegalMoves(state, playerID)
	if len(moves) == 0 {
		return rules.MoveCommand{}, ErrNoLegalMoves
	}
	return moves[a.rng.Intn(len(moves))], nil
}

// MakeStarvationChoice implements Player.
func (a *RandomAI) MakeStarvationChoice(_ *rules.GameContext, candidates []string, _ string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoLegalMoves
	}
	return candidates[a.rng.Intn(len(candidates))], nil
}
