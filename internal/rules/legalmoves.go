package rules

import "github.com/jarlboard/server/internal/hex"

// maxMoveDistance is the farthest a piece can ever travel in one move: a
// Jarl granted momentum by a draft.
const maxMoveDistance = 2

// LegalMoves enumerates every MoveCommand playerID may currently submit,
// by trying each of their pieces against every hex within striking
// distance and keeping the ones ValidateMove accepts. It is a pure
// read-only scan used by AI players, not the movement-legality engine
// itself — ValidateMove remains the single source of truth.
func LegalMoves(ctx *GameContext, playerID string) []MoveCommand {
	var moves []MoveCommand
	for _, piece := range ctx.Pieces {
		if piece.PlayerID != playerID || piece.Type == PieceShield {
			continue
		}
		for d := 0; d < 6; d++ {
			line := hex.Line(piece.Position, d, maxMoveDistance)
			for _, dest := range line {
				cmd := MoveCommand{PieceID: piece.ID, Destination: dest}
				if ValidateMove(ctx, true, playerID, cmd).Valid {
					moves = append(moves, cmd)
				}
			}
		}
	}
	return moves
}
