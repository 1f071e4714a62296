package rules

import "github.com/jarlboard/server/internal/hex"

// CombatOutcome is the resolved result of an attack: push or blocked.
type CombatOutcome string

const (
	OutcomePush    CombatOutcome = "push"
	OutcomeBlocked CombatOutcome = "blocked"
)

// CombatResult carries the full arithmetic breakdown for observability and
// client preview, per spec section 4.2.
type CombatResult struct {
	AttackerID string
	DefenderID string
	Direction  int

	Base     int
	Momentum int

	InlineSupport     int
	InlineSupporters  []string
	Bracing           int
	BracingSupporters []string

	AttackTotal  int
	DefenseTotal int

	Outcome       CombatOutcome
	PushDirection int // meaningful iff Outcome == OutcomePush
}

// ResolveCombat computes the outcome of attacker (at its pre-move hex)
// attacking defender, with the attack traveling in direction d. hasMomentum
// is true iff the attacker is a Jarl completing a validated 2-hex move.
func ResolveCombat(ctx *GameContext, attacker, defender *Piece, d int, hasMomentum bool) CombatResult {
	res := CombatResult{
		AttackerID: attacker.ID,
		DefenderID: defender.ID,
		Direction:  d,
		Base:       attacker.Type.BaseStrength() + defender.Type.BaseStrength(),
	}
	if hasMomentum {
		res.Momentum = 1
	}

	res.InlineSupporters, res.InlineSupport = contiguousSupport(ctx, attacker.Position, hex.Opposite(d), attacker.PlayerID)
	res.BracingSupporters, res.Bracing = contiguousSupport(ctx, defender.Position, d, defender.PlayerID)

	res.AttackTotal = attacker.Type.BaseStrength() + res.Momentum + res.InlineSupport
	res.DefenseTotal = defender.Type.BaseStrength() + res.Bracing

	if res.AttackTotal > res.DefenseTotal {
		res.Outcome = OutcomePush
		res.PushDirection = d
	} else {
		res.Outcome = OutcomeBlocked
	}
	return res
}

// contiguousSupport walks from start in direction d, collecting the base
// strength of contiguous friendly (same playerID) pieces. The walk stops at
// the first empty hex, enemy piece, shield, or board edge.
func contiguousSupport(ctx *GameContext, start hex.Coord, d int, playerID string) ([]string, int) {
	var ids []string
	total := 0
	cur := start
	for {
		cur = hex.Neighbor(cur, d)
		if !hex.OnBoard(cur, ctx.Config.BoardRadius) {
			break
		}
		p := ctx.PieceAt(cur)
		if p == nil || p.Type == PieceShield || p.PlayerID != playerID {
			break
		}
		ids = append(ids, p.ID)
		total += p.Type.BaseStrength()
	}
	return ids, total
}
