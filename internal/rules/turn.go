package rules

import (
	"sort"

	"github.com/jarlboard/server/internal/hex"
)

// ApplyResult is the outcome of ApplyMove.
type ApplyResult struct {
	Context *GameContext
	Events  []Event

	Valid  bool
	Reason RejectReason

	// TriggerStarvation is true when this move's post-processing crossed a
	// starvation threshold; the caller (machine) is responsible for the
	// state transition, but StarvationCandidates is already populated on
	// Context.
	TriggerStarvation bool
}

type eliminatedMeta struct {
	id       string
	pieceTyp PieceType
	playerID string
	cause    EliminationCause
}

// ApplyMove validates and, if legal, applies cmd to ctx, returning a new
// context (ctx itself is never mutated) and the events produced. playing
// must reflect whether the owning machine is in playing.awaitingMove.
func ApplyMove(ctx *GameContext, playing bool, playerID string, cmd MoveCommand) ApplyResult {
	validation := ValidateMove(ctx, playing, playerID, cmd)
	if !validation.Valid {
		return ApplyResult{Valid: false, Reason: validation.Reason}
	}

	working := ctx.Clone()
	working.TurnNumber++
	mover := working.PieceByID(cmd.PieceID)
	fromPos := mover.Position
	moverType := mover.Type

	destination := cmd.Destination
	if validation.AdjustedDestination != nil {
		destination = *validation.AdjustedDestination
	}

	var events []Event
	var eliminated []eliminatedMeta

	occupant := working.PieceAt(destination)
	switch {
	case occupant == nil:
		mover.Position = destination
		events = append(events, Event{Type: EventMove, PieceID: mover.ID, PlayerID: playerID, From: fromPos, To: destination})

	default:
		combat := ResolveCombat(working, mover, occupant, validation.Direction, validation.HasMomentum)
		if combat.Outcome == OutcomeBlocked {
			break
		}

		pushOutcome := ResolvePush(working, occupant, combat.PushDirection, fromPos)

		// Capture elimination metadata before mutating, and emit PUSH
		// events with increasing depth in chain order (defender-first).
		depth := 0
		for _, id := range pushOutcome.Chain {
			p := working.PieceByID(id)
			if newPos, moved := pushOutcome.Moved[id]; moved {
				events = append(events, Event{Type: EventPush, PieceID: id, From: p.Position, To: newPos, Depth: depth})
			}
			depth++
		}
		for _, elim := range pushOutcome.Eliminated {
			p := working.PieceByID(elim.PieceID)
			eliminated = append(eliminated, eliminatedMeta{id: p.ID, pieceTyp: p.Type, playerID: p.PlayerID, cause: elim.Cause})
			events = append(events, Event{Type: EventEliminated, PieceID: p.ID, PlayerID: p.PlayerID, Cause: elim.Cause})
		}

		for id, newPos := range pushOutcome.Moved {
			working.PieceByID(id).Position = newPos
		}
		if pushOutcome.AttackerMoved {
			mover.Position = pushOutcome.AttackerNewHex
		}
		removeEliminated(working, eliminated)

		events = append(events, Event{Type: EventMove, PieceID: mover.ID, PlayerID: playerID, From: fromPos, To: mover.Position})
	}

	// Re-fetch mover: if the mover itself somehow got eliminated this is a
	// programmer error (an attacker cannot be part of its own push chain).
	mover = working.PieceByID(cmd.PieceID)

	result := runPostMovePipeline(working, playerID, moverType, mover.Position, eliminated, events)
	result.appendMoveHistory(cmd, playerID, fromPos)
	return result
}

func removeEliminated(ctx *GameContext, eliminated []eliminatedMeta) {
	if len(eliminated) == 0 {
		return
	}
	dead := make(map[string]bool, len(eliminated))
	for _, e := range eliminated {
		dead[e.id] = true
	}
	kept := ctx.Pieces[:0:0]
	for _, p := range ctx.Pieces {
		if !dead[p.ID] {
			kept = append(kept, p)
		}
	}
	ctx.Pieces = kept
}

// removePlayerPieces removes every remaining piece belonging to playerID.
func removePlayerPieces(ctx *GameContext, playerID string) {
	kept := ctx.Pieces[:0:0]
	for _, p := range ctx.Pieces {
		if p.PlayerID != playerID {
			kept = append(kept, p)
		}
	}
	ctx.Pieces = kept
}

// runPostMovePipeline implements spec section 4.4 steps 1-6, run after every
// successful move (including a blocked attack, which still ends the turn).
func runPostMovePipeline(working *GameContext, moverPlayerID string, moverType PieceType, moverPos hex.Coord, eliminated []eliminatedMeta, events []Event) ApplyResult {
	// 1. Throne victory.
	if moverType == PieceJarl && moverPos == hex.Throne {
		working.WinnerID = moverPlayerID
		working.WinCondition = WinThrone
		events = append(events, Event{Type: EventGameEnded, WinnerID: moverPlayerID, WinCondition: WinThrone})
		return ApplyResult{Valid: true, Context: working, Events: events}
	}

	// 2. Elimination check: a fallen Jarl eliminates its owner.
	anyElimination := len(eliminated) > 0
	for _, e := range eliminated {
		if e.pieceTyp != PieceJarl {
			continue
		}
		player := working.PlayerByID(e.playerID)
		if player == nil || player.IsEliminated {
			continue
		}
		player.IsEliminated = true
		removePlayerPieces(working, e.playerID)
	}

	// 3. Last-standing check.
	if res, done := checkLastStanding(working, events); done {
		return res
	}

	// 4. Round/first-player rotation.
	wrapped := advanceTurn(working, anyElimination)
	events = append(events, Event{Type: EventTurnEnded, PlayerID: moverPlayerID})

	result := ApplyResult{Valid: true, Context: working, Events: events}
	if wrapped {
		// 5. Jarl grace-period tracking.
		applyGracePeriodTracking(working)
		// 6. Starvation trigger.
		if isStarvationRound(working.RoundsSinceElimination) {
			candidates := SelectStarvationCandidates(working)
			working.StarvationCandidates = candidates
			working.StarvationChoices = map[string]string{}
			result.TriggerStarvation = true
			result.Events = append(result.Events, Event{Type: EventStarvationTriggered})
		}
	}
	return result
}

// SkipTurn runs the turn-timer fallback: no move is applied, but the same
// round/first-player rotation, grace-period tracking, and starvation
// trigger from runPostMovePipeline steps 4-6 still run.
func SkipTurn(ctx *GameContext) ApplyResult {
	working := ctx.Clone()
	skipped := working.CurrentPlayerID
	events := []Event{{Type: EventTurnSkipped, PlayerID: skipped}}

	wrapped := advanceTurn(working, false)
	result := ApplyResult{Valid: true, Context: working, Events: events}
	if wrapped {
		applyGracePeriodTracking(working)
		if isStarvationRound(working.RoundsSinceElimination) {
			candidates := SelectStarvationCandidates(working)
			working.StarvationCandidates = candidates
			working.StarvationChoices = map[string]string{}
			result.TriggerStarvation = true
			result.Events = append(result.Events, Event{Type: EventStarvationTriggered})
		}
	}
	return result
}

func checkLastStanding(working *GameContext, events []Event) (ApplyResult, bool) {
	var alive []string
	for _, p := range working.Players {
		if !p.IsEliminated {
			alive = append(alive, p.ID)
		}
	}
	if len(alive) == 1 {
		working.WinnerID = alive[0]
		working.WinCondition = WinLastStanding
		events = append(events, Event{Type: EventGameEnded, WinnerID: alive[0], WinCondition: WinLastStanding})
		return ApplyResult{Valid: true, Context: working, Events: events}, true
	}
	return ApplyResult{}, false
}

// isStarvationRound reports whether n is 10, or 15, 20, 25, ... thereafter.
func isStarvationRound(n int) bool {
	if n < 10 {
		return false
	}
	return n == 10 || (n > 10 && (n-10)%5 == 0)
}

// advanceTurn moves CurrentPlayerID to the next non-eliminated seat,
// rotating round/first-player bookkeeping on wrap. Returns true if a new
// round began.
func advanceTurn(working *GameContext, eliminationOccurred bool) bool {
	n := len(working.Players)
	idx := seatIndex(working, working.CurrentPlayerID)

	raw := idx + 1
	for i := 0; i < n*2; i++ {
		if !working.Players[raw%n].IsEliminated {
			break
		}
		raw++
	}
	wrapped := raw >= n
	working.CurrentPlayerID = working.Players[raw%n].ID

	if wrapped {
		working.RoundNumber++
		rawFi := working.FirstPlayerIndex + 1
		for i := 0; i < n*2; i++ {
			if !working.Players[rawFi%n].IsEliminated {
				break
			}
			rawFi++
		}
		working.FirstPlayerIndex = rawFi % n
		if eliminationOccurred {
			working.RoundsSinceElimination = 0
		} else {
			working.RoundsSinceElimination++
		}
	}
	return wrapped
}

func seatIndex(ctx *GameContext, playerID string) int {
	for i, p := range ctx.Players {
		if p.ID == playerID {
			return i
		}
	}
	return 0
}

// applyGracePeriodTracking implements spec section 4.4 step 5.
func applyGracePeriodTracking(ctx *GameContext) {
	for i := range ctx.Players {
		p := &ctx.Players[i]
		if p.IsEliminated {
			continue
		}
		if countWarriors(ctx, p.ID) == 0 {
			if p.RoundsSinceLastWarrior == nil {
				zero := 0
				p.RoundsSinceLastWarrior = &zero
			} else {
				*p.RoundsSinceLastWarrior++
			}
		} else {
			p.RoundsSinceLastWarrior = nil
		}
	}
}

func countWarriors(ctx *GameContext, playerID string) int {
	n := 0
	for _, p := range ctx.Pieces {
		if p.PlayerID == playerID && p.Type == PieceWarrior {
			n++
		}
	}
	return n
}

func (r ApplyResult) appendMoveHistory(cmd MoveCommand, playerID string, fromPos hex.Coord) {
	if r.Context == nil {
		return
	}
	rec := MoveRecord{
		TurnNumber: r.Context.TurnNumber,
		PlayerID:   playerID,
		PieceID:    cmd.PieceID,
		From:       fromPos,
		To:         cmd.Destination,
	}
	r.Context.MoveHistory = append(r.Context.MoveHistory, rec)
	if len(r.Context.MoveHistory) > MaxMoveHistory {
		r.Context.MoveHistory = r.Context.MoveHistory[len(r.Context.MoveHistory)-MaxMoveHistory:]
	}
}

// SelectStarvationCandidates enumerates, for each non-eliminated player, the
// Warriors tied for maximum hex-distance from the throne. Players with no
// Warriors produce an empty (but present) candidate list.
func SelectStarvationCandidates(ctx *GameContext) map[string][]string {
	out := map[string][]string{}
	for _, player := range ctx.Players {
		if player.IsEliminated {
			continue
		}
		var warriors []Piece
		for _, p := range ctx.Pieces {
			if p.PlayerID == player.ID && p.Type == PieceWarrior {
				warriors = append(warriors, p)
			}
		}
		if len(warriors) == 0 {
			out[player.ID] = []string{}
			continue
		}
		maxDist := -1
		for _, w := range warriors {
			d := hex.Distance(hex.Throne, w.Position)
			if d > maxDist {
				maxDist = d
			}
		}
		var ids []string
		for _, w := range warriors {
			if hex.Distance(hex.Throne, w.Position) == maxDist {
				ids = append(ids, w.ID)
			}
		}
		sort.Strings(ids)
		out[player.ID] = ids
	}
	return out
}

// ResolveStarvation implements spec section 4.4's starvation resolution,
// consuming ctx.StarvationChoices (falling back to the first candidate for
// any player who didn't choose, or chose invalidly) and returning the new
// context and events. Always returns to playing.awaitingMove unless the
// resolution ends the game.
func ResolveStarvation(ctx *GameContext) ApplyResult {
	working := ctx.Clone()
	var events []Event

	for playerID, candidates := range working.StarvationCandidates {
		if len(candidates) == 0 {
			continue
		}
		chosen, ok := working.StarvationChoices[playerID]
		if !ok || !containsString(candidates, chosen) {
			chosen = candidates[0]
		}
		removeEliminated(working, []eliminatedMeta{{id: chosen, cause: CauseStarvation}})
		events = append(events, Event{Type: EventEliminated, PieceID: chosen, PlayerID: playerID, Cause: CauseStarvation})
	}

	// Grace-period tracking already ran once this round at the wrap that
	// triggered this starvation round (runPostMovePipeline/SkipTurn step 5),
	// covering every player who was already warrior-less. Here we only need
	// to start the clock for players whose last Warrior was just sacrificed
	// above, per the starvation-resolution rule ("drops to zero as a
	// consequence"). Re-running the full tracker here would double-count the
	// wrap-time increment for everyone who was already at zero.
	for playerID := range working.StarvationCandidates {
		player := working.PlayerByID(playerID)
		if player == nil || player.IsEliminated {
			continue
		}
		if player.RoundsSinceLastWarrior == nil && countWarriors(working, playerID) == 0 {
			zero := 0
			player.RoundsSinceLastWarrior = &zero
		}
	}

	// Jarl-starvation: players whose warrior count is (still) zero after the
	// sacrifice, and who have been warrior-less for >= 5 rounds, lose their Jarl.
	for i := range working.Players {
		p := &working.Players[i]
		if p.IsEliminated {
			continue
		}
		if p.RoundsSinceLastWarrior != nil && *p.RoundsSinceLastWarrior >= 5 && countWarriors(working, p.ID) == 0 {
			jarlID := ""
			for _, piece := range working.Pieces {
				if piece.PlayerID == p.ID && piece.Type == PieceJarl {
					jarlID = piece.ID
					break
				}
			}
			if jarlID != "" {
				removeEliminated(working, []eliminatedMeta{{id: jarlID, cause: CauseJarlStarved}})
				events = append(events, Event{Type: EventJarlStarved, PieceID: jarlID, PlayerID: p.ID, Cause: CauseJarlStarved})
				p.IsEliminated = true
				removePlayerPieces(working, p.ID)
			}
		}
	}

	working.RoundsSinceElimination = 0
	working.StarvationCandidates = nil
	working.StarvationChoices = nil
	events = append(events, Event{Type: EventStarvationResolved})

	if res, done := checkLastStanding(working, events); done {
		return res
	}
	return ApplyResult{Valid: true, Context: working, Events: events}
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
