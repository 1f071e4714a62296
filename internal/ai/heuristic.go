package ai

import (
	"context"
	"sort"

	"github.com/jarlboard/server/internal/hex"
	"github.com/jarlboard/server/internal/rules"
)

// WeightedAI scores every legal move by simulating it and picking from the
// top-scoring band, grounded on the teacher's greedy HeuristicStrategy /
// TacticalStrategy shape: score all candidates, sort, act on the best.
type WeightedAI struct {
	rng RandSource
	// topN bounds how many of the highest-scoring moves are eligible for
	// the final random pick, keeping play varied rather than deterministic.
	topN int
}

// NewWeightedAI builds a WeightedAI drawing tie-break randomness from rng.
func NewWeightedAI(rng RandSource) *WeightedAI {
	return &WeightedAI{rng: rng, topN: 3}
}

type scoredMove struct {
	cmd   rules.MoveCommand
	score float64
}

// GenerateMove implements Player.
func (a *WeightedAI) GenerateMove(_ context.Context, state *rules.GameContext, playerID string) (rules.MoveCommand, error) {
	moves := rules.LegalMoves(state, playerID)
	if len(moves) == 0 {
		return rules.MoveCommand{}, ErrNoLegalMoves
	}

	scored := make([]scoredMove, len(moves))
	for i, cmd := range moves {
		scored[i] = scoredMove{cmd: cmd, score: a.score(state, playerID, cmd)}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := a.topN
	if n > len(scored) {
		n = len(scored)
	}
	return scored[a.rng.Intn(n)].cmd, nil
}

// score simulates cmd on a clone of state and rewards eliminating an
// opponent piece, advancing the player's own Jarl toward the throne, and
// reaching the throne outright.
func (a *WeightedAI) score(state *rules.GameContext, playerID string, cmd rules.MoveCommand) float64 {
	result := rules.ApplyMove(state, true, playerID, cmd)
	if !result.Valid {
		return -1
	}

	var score float64
	for _, ev := range result.Events {
		switch ev.Type {
		case rules.EventEliminated:
			if ev.PlayerID != playerID {
				score += 10
			} else {
				score -= 6
			}
		case rules.EventGameEnded:
			if ev.WinnerID == playerID {
				score += 1000
			}
		}
	}

	if piece := state.PieceByID(cmd.PieceID); piece != nil && piece.Type == rules.PieceJarl {
		before := hex.Distance(piece.Position, hex.Throne)
		after := hex.Distance(cmd.Destination, hex.Throne)
		score += float64(before-after) * 2
	}

	return score
}

// MakeStarvationChoice implements Player: sacrifice the candidate farthest
// from the throne first, since it is the least useful for an eventual
// throne assault.
func (a *WeightedAI) MakeStarvationChoice(state *rules.GameContext, candidates []string, _ string) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoLegalMoves
	}
	best := candidates[0]
	bestDist := -1
	for _, id := range candidates {
		piece := state.PieceByID(id)
		if piece == nil {
			continue
		}
		d := hex.Distance(piece.Position, hex.Throne)
		if d > bestDist {
			bestDist = d
			best = id
		}
	}
	return best, nil
}
