package rules

import (
	"testing"

	"github.com/jarlboard/server/internal/hex"
)

func baseContext() *GameContext {
	return &GameContext{
		GameID:          "g1",
		Config:          GameConfig{PlayerCount: 2, BoardRadius: 4, WarriorCount: 6},
		Players:         []Player{{ID: "p1"}, {ID: "p2"}},
		CurrentPlayerID: "p1",
		TurnNumber:      1,
	}
}

func TestValidateMoveRejectsWhenNotPlaying(t *testing.T) {
	ctx := baseContext()
	v := ValidateMove(ctx, false, "p1", MoveCommand{PieceID: "x"})
	if v.Valid || v.Reason != ReasonGameNotPlaying {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveRejectsUnknownPiece(t *testing.T) {
	ctx := baseContext()
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "missing"})
	if v.Valid || v.Reason != ReasonPieceNotFound {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveRejectsShieldMove(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "s1", Type: PieceShield, Position: hex.Coord{Q: 1, R: 0}}}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "s1", Destination: hex.Coord{Q: 2, R: 0}})
	if v.Valid || v.Reason != ReasonShieldCannotMove {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveRejectsWrongTurn(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "w1", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 1, R: 0}}}
	v := ValidateMove(ctx, true, "p2", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 2, R: 0}})
	if v.Valid || v.Reason != ReasonNotYourTurn {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveWarriorOneHex(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}}}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 2, R: 0}})
	if !v.Valid {
		t.Fatalf("expected valid, got %+v", v)
	}
}

func TestValidateMoveWarriorTwoHexRejected(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}}}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 3, R: 0}})
	if v.Valid || v.Reason != ReasonInvalidDistanceWarrior {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveWarriorCannotEnterThrone(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}}}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 0, R: 0}})
	if v.Valid || v.Reason != ReasonWarriorCannotEnterThrone {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveJarlTwoHexNeedsDraft(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{{ID: "j1", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 2, R: 0}}}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "j1", Destination: hex.Coord{Q: 4, R: 0}})
	if v.Valid || v.Reason != ReasonJarlNeedsDraftForTwoHex {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveJarlTwoHexWithDraftGrantsMomentum(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "j1", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 2, R: 0}},
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}},
		{ID: "w2", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 0, R: 0}},
	}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "j1", Destination: hex.Coord{Q: 4, R: 0}})
	if !v.Valid || !v.HasMomentum {
		t.Fatalf("expected valid momentum move, got %+v", v)
	}
}

func TestValidateMoveJarlTwoHexThroneCrossingTruncates(t *testing.T) {
	ctx := baseContext()
	ctx.Config.BoardRadius = 4
	ctx.Pieces = []Piece{
		{ID: "j1", Type: PieceJarl, PlayerID: "p1", Position: hex.Coord{Q: 2, R: 0}},
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 3, R: 0}},
		{ID: "w2", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 4, R: 0}},
	}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "j1", Destination: hex.Coord{Q: 0, R: 0}})
	if !v.Valid {
		t.Fatalf("expected valid throne-crossing move, got %+v", v)
	}
	if v.AdjustedDestination == nil || *v.AdjustedDestination != hex.Throne {
		t.Fatalf("expected adjusted destination to be throne, got %+v", v.AdjustedDestination)
	}
}

func TestValidateMoveDestinationOccupiedFriendly(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}},
		{ID: "w2", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 2, R: 0}},
	}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 2, R: 0}})
	if v.Valid || v.Reason != ReasonDestinationOccupiedFriendly {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveDestinationBlockedByShield(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}},
		{ID: "s1", Type: PieceShield, Position: hex.Coord{Q: 2, R: 0}},
	}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 2, R: 0}})
	if v.Valid || v.Reason != ReasonPathBlocked {
		t.Fatalf("got %+v", v)
	}
}

func TestValidateMoveEnemyOccupiedIsValid(t *testing.T) {
	ctx := baseContext()
	ctx.Pieces = []Piece{
		{ID: "w1", Type: PieceWarrior, PlayerID: "p1", Position: hex.Coord{Q: 1, R: 0}},
		{ID: "w2", Type: PieceWarrior, PlayerID: "p2", Position: hex.Coord{Q: 2, R: 0}},
	}
	v := ValidateMove(ctx, true, "p1", MoveCommand{PieceID: "w1", Destination: hex.Coord{Q: 2, R: 0}})
	if !v.Valid {
		t.Fatalf("expected valid attack move, got %+v", v)
	}
}
