package rules

import (
	"testing"

	"github.com/jarlboard/server/internal/hex"
)

func TestResolveCombatWarriorVsWarriorBlocked(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	defender := Piece{ID: "d", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	ctx.Pieces = []Piece{attacker, defender}

	res := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if res.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked (1 vs 1), got %+v", res)
	}
}

func TestResolveCombatJarlBeatsWarrior(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	defender := Piece{ID: "d", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	ctx.Pieces = []Piece{attacker, defender}

	res := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if res.Outcome != OutcomePush {
		t.Fatalf("expected push (2 vs 1), got %+v", res)
	}
}

func TestResolveCombatMomentumTipsTheBalance(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	defender := Piece{ID: "d", Type: PieceJarl, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	ctx.Pieces = []Piece{attacker, defender}

	noMomentum := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if noMomentum.Outcome != OutcomeBlocked {
		t.Fatalf("expected blocked jarl-vs-jarl without momentum, got %+v", noMomentum)
	}
	withMomentum := ResolveCombat(ctx, &attacker, &defender, 0, true)
	if withMomentum.Outcome != OutcomePush {
		t.Fatalf("expected push once momentum is added, got %+v", withMomentum)
	}
}

func TestResolveCombatInlineSupportAddsAttack(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	support := Piece{ID: "s", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: -1, R: 0}}
	defender := Piece{ID: "d", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	ctx.Pieces = []Piece{attacker, support, defender}

	res := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if res.Outcome != OutcomePush || res.InlineSupport != 1 {
		t.Fatalf("expected supported push, got %+v", res)
	}
}

func TestResolveCombatBracingAddsDefense(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	defender := Piece{ID: "d", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	brace := Piece{ID: "b", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 2, R: 0}}
	ctx.Pieces = []Piece{attacker, defender, brace}

	res := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if res.Outcome != OutcomeBlocked || res.Bracing != 1 {
		t.Fatalf("expected braced block (2 vs 2), got %+v", res)
	}
}

func TestResolveCombatShieldGivesNoBracing(t *testing.T) {
	ctx := baseContext()
	attacker := Piece{ID: "a", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}}
	defender := Piece{ID: "d", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}
	shield := Piece{ID: "s", Type: PieceShield, Position: hex.Coord{Q: 2, R: 0}}
	ctx.Pieces = []Piece{attacker, defender, shield}

	res := ResolveCombat(ctx, &attacker, &defender, 0, false)
	if res.Bracing != 0 {
		t.Fatalf("a shield cannot contribute bracing strength, got %+v", res)
	}
	if res.Outcome != OutcomePush {
		t.Fatalf("expected push since shield gives no bracing, got %+v", res)
	}
}
