package rules

import "github.com/jarlboard/server/internal/hex"

// RejectReason is the fixed, closed set of move-rejection reasons. No other
// values are ever produced by ValidateMove.
type RejectReason string

const (
	ReasonNone                         RejectReason = ""
	ReasonPieceNotFound                RejectReason = "PIECE_NOT_FOUND"
	ReasonNotYourPiece                 RejectReason = "NOT_YOUR_PIECE"
	ReasonNotYourTurn                  RejectReason = "NOT_YOUR_TURN"
	ReasonGameNotPlaying               RejectReason = "GAME_NOT_PLAYING"
	ReasonDestinationOffBoard          RejectReason = "DESTINATION_OFF_BOARD"
	ReasonDestinationOccupiedFriendly  RejectReason = "DESTINATION_OCCUPIED_FRIENDLY"
	ReasonWarriorCannotEnterThrone     RejectReason = "WARRIOR_CANNOT_ENTER_THRONE"
	ReasonInvalidDistanceWarrior       RejectReason = "INVALID_DISTANCE_WARRIOR"
	ReasonInvalidDistanceJarl          RejectReason = "INVALID_DISTANCE_JARL"
	ReasonJarlNeedsDraftForTwoHex      RejectReason = "JARL_NEEDS_DRAFT_FOR_TWO_HEX"
	ReasonPathBlocked                  RejectReason = "PATH_BLOCKED"
	ReasonMoveNotStraightLine          RejectReason = "MOVE_NOT_STRAIGHT_LINE"
	ReasonShieldCannotMove             RejectReason = "SHIELD_CANNOT_MOVE"
)

// MoveValidation is the result of checking a MoveCommand against the rules,
// without applying it.
type MoveValidation struct {
	Valid               bool
	Reason              RejectReason
	HasMomentum         bool
	AdjustedDestination *hex.Coord
	// Direction is the axial direction the move travels, valid whenever Valid
	// is true; callers (combat resolution) need it regardless of distance.
	Direction int
}

func reject(reason RejectReason) MoveValidation {
	return MoveValidation{Valid: false, Reason: reason}
}

// ValidateMove checks cmd for playerID against ctx, exactly per the rules
// in spec section 4.1. playing must be true iff the owning machine is
// currently in the playing.awaitingMove state; every other rejection is
// pure function of ctx and cmd.
func ValidateMove(ctx *GameContext, playing bool, playerID string, cmd MoveCommand) MoveValidation {
	if !playing {
		return reject(ReasonGameNotPlaying)
	}

	piece := ctx.PieceByID(cmd.PieceID)
	if piece == nil {
		return reject(ReasonPieceNotFound)
	}
	if piece.Type == PieceShield {
		return reject(ReasonShieldCannotMove)
	}
	if piece.PlayerID != playerID {
		return reject(ReasonNotYourPiece)
	}
	if playerID != ctx.CurrentPlayerID {
		return reject(ReasonNotYourTurn)
	}

	direction, ok := hex.DirectionBetween(piece.Position, cmd.Destination)
	if !ok {
		return reject(ReasonMoveNotStraightLine)
	}
	distance := hex.Distance(piece.Position, cmd.Destination)

	hasMomentum := false
	switch piece.Type {
	case PieceWarrior:
		if distance != 1 {
			return reject(ReasonInvalidDistanceWarrior)
		}
	case PieceJarl:
		if distance != 1 && distance != 2 {
			return reject(ReasonInvalidDistanceJarl)
		}
		if distance == 2 {
			if !hasDraft(ctx, piece, direction) {
				return reject(ReasonJarlNeedsDraftForTwoHex)
			}
			hasMomentum = true
		}
	}

	destination := cmd.Destination
	var adjusted *hex.Coord
	if piece.Type == PieceJarl && distance == 2 {
		line := hex.Line(piece.Position, direction, 2)
		if line[0] == hex.Throne || line[1] == hex.Throne {
			t := hex.Throne
			adjusted = &t
			destination = hex.Throne
		}
	}

	// A hole counts as off the board: no piece may step into one.
	if !hex.OnBoard(destination, ctx.Config.BoardRadius) || ctx.IsHole(destination) {
		return reject(ReasonDestinationOffBoard)
	}
	if piece.Type == PieceWarrior && destination == hex.Throne {
		return reject(ReasonWarriorCannotEnterThrone)
	}

	if occupant := ctx.PieceAt(destination); occupant != nil {
		if occupant.Type == PieceShield {
			return reject(ReasonPathBlocked)
		}
		if occupant.PlayerID == playerID {
			return reject(ReasonDestinationOccupiedFriendly)
		}
		// Enemy-occupied: combat, handled by the caller (applyMove).
	}

	return MoveValidation{
		Valid:               true,
		HasMomentum:         hasMomentum,
		AdjustedDestination: adjusted,
		Direction:           direction,
	}
}

// hasDraft reports whether two contiguous friendly pieces stand directly
// behind piece in direction d (Draft Formation), with no gap or enemy piece.
func hasDraft(ctx *GameContext, piece *Piece, d int) bool {
	behind := hex.Opposite(d)
	first := hex.Neighbor(piece.Position, behind)
	second := hex.Neighbor(first, behind)

	p1 := ctx.PieceAt(first)
	if p1 == nil || p1.PlayerID != piece.PlayerID {
		return false
	}
	p2 := ctx.PieceAt(second)
	if p2 == nil || p2.PlayerID != piece.PlayerID {
		return false
	}
	return true
}
