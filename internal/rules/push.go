package rules

import "github.com/jarlboard/server/internal/hex"

// PushTerminator identifies what stopped a push chain.
type PushTerminator string

const (
	TerminatorEmpty  PushTerminator = "empty"
	TerminatorEdge   PushTerminator = "edge"
	TerminatorHole   PushTerminator = "hole"
	TerminatorThrone PushTerminator = "throne"
)

// PushOutcome describes the effect of resolving a push chain.
type PushOutcome struct {
	Terminator PushTerminator
	// Chain lists the chain's piece IDs, defender-first (closest to the
	// attacker) to farthest (closest to the terminator hex).
	Chain []string
	// Moved maps a piece ID to its new position, for pieces that shifted.
	Moved map[string]hex.Coord
	// Eliminated lists pieces removed from the board, in chain order.
	Eliminated []EliminatedPiece
	// AttackerMoved is true iff the attacker advances into the defender's
	// original hex.
	AttackerMoved   bool
	AttackerNewHex  hex.Coord
}

// EliminatedPiece names a piece removed from the board and why.
type EliminatedPiece struct {
	PieceID string
	Cause   EliminationCause
}

// ResolvePush walks the chain starting at defender in direction d and
// resolves it per spec section 4.3. attackerPos is the attacker's
// pre-attack hex (needed to compute whether it advances).
func ResolvePush(ctx *GameContext, defender *Piece, d int, attackerPos hex.Coord) PushOutcome {
	chain := []*Piece{defender}
	cur := defender.Position
	for {
		next := hex.Neighbor(cur, d)
		p := ctx.PieceAt(next)
		if p == nil {
			break
		}
		chain = append(chain, p)
		cur = next
	}

	terminatorHex := hex.Neighbor(cur, d)
	var terminator PushTerminator
	switch {
	case !hex.OnBoard(terminatorHex, ctx.Config.BoardRadius):
		terminator = TerminatorEdge
	case ctx.IsHole(terminatorHex):
		terminator = TerminatorHole
	case terminatorHex == hex.Throne && chain[len(chain)-1].Type == PieceWarrior:
		terminator = TerminatorThrone
	default:
		terminator = TerminatorEmpty
	}

	out := PushOutcome{
		Terminator: terminator,
		Moved:      map[string]hex.Coord{},
	}
	for _, p := range chain {
		out.Chain = append(out.Chain, p.ID)
	}

	// Cascade from the far end (closest to the terminator) back toward the
	// defender. A piece frees its own hex only if it moves; a shield never
	// moves, and the last chain piece never moves when the terminator is
	// throne — either case halts the cascade for everything behind it.
	nextHexFree := false
	switch terminator {
	case TerminatorEdge, TerminatorHole:
		cause := CauseEdge
		if terminator == TerminatorHole {
			cause = CauseHole
		}
		last := chain[len(chain)-1]
		out.Eliminated = append(out.Eliminated, EliminatedPiece{PieceID: last.ID, Cause: cause})
		nextHexFree = true
		chain = chain[:len(chain)-1]
	case TerminatorEmpty:
		nextHexFree = true
	case TerminatorThrone:
		nextHexFree = false
		chain = chain[:len(chain)-1]
	}

	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		if p.Type == PieceShield || !nextHexFree {
			nextHexFree = false
			continue
		}
		out.Moved[p.ID] = hex.Neighbor(p.Position, d)
		nextHexFree = true
	}

	if _, defenderMoved := out.Moved[defender.ID]; defenderMoved {
		out.AttackerMoved = true
		out.AttackerNewHex = defender.Position
	}

	return out
}
