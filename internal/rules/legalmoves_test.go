package rules

import (
	"testing"

	"github.com/jarlboard/server/internal/hex"
)

func TestLegalMovesOnlyReturnsOwnPieces(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 0, R: -1}},
		{ID: "w2", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: -1}},
	}

	moves := LegalMoves(ctx, "p1")
	if len(moves) == 0 {
		t.Fatal("expected at least one legal move for p1")
	}
	for _, m := range moves {
		if m.PieceID != "w1" {
			t.Fatalf("legal move referenced opponent's piece: %+v", m)
		}
	}
}

func TestLegalMovesExcludesShields(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "s1", Type: PieceShield, Position: hex.Coord{Q: 0, R: -1}},
	}

	moves := LegalMoves(ctx, "p1")
	if len(moves) != 0 {
		t.Fatalf("expected no legal moves (only a shield on board), got %+v", moves)
	}
}

func TestLegalMovesRespectsDestinationValidity(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 0, R: -1}},
	}
	ctx.Holes = []hex.Coord{{Q: 0, R: -2}}

	moves := LegalMoves(ctx, "p1")
	for _, m := range moves {
		if m.Destination == ctx.Holes[0] {
			t.Fatalf("legal move entered a hole: %+v", m)
		}
		if m.Destination == hex.Throne {
			t.Fatalf("warrior legal move entered the throne: %+v", m)
		}
	}
}
