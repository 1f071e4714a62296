package rules

import "github.com/jarlboard/server/internal/hex"

// EventType discriminates the tagged-variant GameEvent union. Values are
// the wire-stable taxonomy from the spec: clients switch on this field.
type EventType string

const (
	EventMove                EventType = "MOVE"
	EventPush                EventType = "PUSH"
	EventEliminated          EventType = "ELIMINATED"
	EventTurnEnded           EventType = "TURN_ENDED"
	EventTurnSkipped         EventType = "TURN_SKIPPED"
	EventGameEnded           EventType = "GAME_ENDED"
	EventStarvationTriggered EventType = "STARVATION_TRIGGERED"
	EventStarvationResolved  EventType = "STARVATION_RESOLVED"
	EventJarlStarved         EventType = "JARL_STARVED"
	EventPlayerJoined        EventType = "PLAYER_JOINED"
	EventPlayerLeft          EventType = "PLAYER_LEFT"
)

// EliminationCause identifies why a piece was removed from the board.
type EliminationCause string

const (
	CauseEdge          EliminationCause = "edge"
	CauseHole          EliminationCause = "hole"
	CauseStarvation    EliminationCause = "starvation"
	CauseJarlStarved   EliminationCause = "jarlStarvation"
)

// Event is a single tagged game event, shaped for JSON wire transport:
// only the fields relevant to Type are meaningful, the rest are zero.
type Event struct {
	Type EventType

	// MOVE / PUSH
	PieceID     string
	PlayerID    string
	From        hex.Coord
	To          hex.Coord
	Depth       int // increasing per chain link, for staggered client animation

	// ELIMINATED
	Cause EliminationCause

	// GAME_ENDED
	WinCondition WinCondition
	WinnerID     string

	// PLAYER_JOINED / PLAYER_LEFT
	Name string
}
