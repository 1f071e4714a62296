// Package machine implements the compound game-lifecycle state machine:
// lobby -> setup -> playing <-> starvation <-> paused -> ended, with the
// playing/starvation sub-states and timed transitions of spec §4.5. It is
// a plain struct with an explicit state path and one method per dispatched
// event, not a generated-code FSM — mirroring the teacher's hand-rolled
// PhaseService transition methods.
package machine

import (
	"errors"
	"math/rand"
	"time"

	"github.com/jarlboard/server/internal/boardsetup"
	"github.com/jarlboard/server/internal/rules"
)

// Top-level state names.
const (
	StateLobby      = "lobby"
	StateSetup      = "setup"
	StatePlaying    = "playing"
	StateStarvation = "starvation"
	StatePaused     = "paused"
	StateEnded      = "ended"
)

// Sub-states, meaningful only alongside their parent top-level state.
const (
	SubAwaitingMove    = "awaitingMove"
	SubCheckingGameEnd = "checkingGameEnd"
	SubAwaitingChoices = "awaitingChoices"
)

var (
	ErrBadState         = errors.New("machine: operation not valid in current state")
	ErrLobbyFull        = errors.New("machine: lobby is full")
	ErrNotHost          = errors.New("machine: only the host may start the game")
	ErrNotEnoughPlayers = errors.New("machine: need at least 2 players to start")
	ErrPlayerNotFound   = errors.New("machine: player not found")
	ErrNotDisconnected  = errors.New("machine: player is not disconnected")
	ErrNotCandidate     = errors.New("machine: piece is not a starvation candidate for this player")
	ErrAlreadyChose     = errors.New("machine: player already made a starvation choice this round")
)

// Transition describes the result of dispatching one event: the state
// path before and after, and the rules-core events emitted along the way.
// The manager uses this to decide what to persist and broadcast; Machine
// itself performs no I/O.
type Transition struct {
	From   []string
	To     []string
	Events []rules.Event
}

// Machine owns one game's GameContext and current state path.
type Machine struct {
	ctx *rules.GameContext
	rng *rand.Rand

	top string
	sub string

	hostID string

	// TurnTimerDeadline and StarvationTimerDeadline are non-nil while the
	// corresponding timed transition is armed. The machine only computes
	// these; scheduling the actual wakeup (Redis TTL key, in-process
	// timer, etc.) is the manager's job, matching the teacher's split
	// between PhaseService (computes deadlines) and TimerListener (acts
	// on them).
	TurnTimerDeadline       *time.Time
	StarvationTimerDeadline *time.Time
}

// NextDeadline returns whichever of the turn or starvation timer is
// currently armed, or nil if neither is. At most one is ever non-nil:
// the two states are mutually exclusive.
func (m *Machine) NextDeadline() *time.Time {
	if m.TurnTimerDeadline != nil {
		return m.TurnTimerDeadline
	}
	return m.StarvationTimerDeadline
}

// New creates a machine in the lobby state for a not-yet-started game.
func New(gameID string, config rules.GameConfig, rng *rand.Rand) *Machine {
	return &Machine{
		ctx: &rules.GameContext{
			GameID: gameID,
			Config: config,
		},
		rng: rng,
		top: StateLobby,
	}
}

// Resume reconstructs a machine from a persisted top-level state name and
// GameContext, for crash recovery (spec §4.6 recover()).
func Resume(topState string, ctx *rules.GameContext, rng *rand.Rand) *Machine {
	m := &Machine{ctx: ctx, rng: rng}
	switch topState {
	case StatePlaying:
		m.top, m.sub = StatePlaying, SubAwaitingMove
		m.armTurnTimer()
	case StateStarvation:
		m.top, m.sub = StateStarvation, SubAwaitingChoices
		m.armStarvationTimer()
	case StatePaused:
		m.top = StatePaused
	case StateEnded:
		m.top = StateEnded
	default:
		m.top = StateLobby
	}
	if len(ctx.Players) > 0 {
		m.hostID = ctx.Players[0].ID
	}
	return m
}

// StatePath returns the current state as e.g. []string{"playing", "awaitingMove"}.
func (m *Machine) StatePath() []string {
	if m.sub == "" {
		return []string{m.top}
	}
	return []string{m.top, m.sub}
}

// TopState returns just the top-level state name, the granularity persisted
// alongside the snapshot (spec §6: "the machine's top-level state name").
func (m *Machine) TopState() string { return m.top }

// Context returns the machine's live GameContext. Callers that need to
// persist or serve it externally should clone it first.
func (m *Machine) Context() *rules.GameContext { return m.ctx }

func (m *Machine) path() []string { return m.StatePath() }

// PlayerJoined handles PLAYER_JOINED{id,name,isAI}.
func (m *Machine) PlayerJoined(id, name string, isAI bool) (Transition, error) {
	from := m.path()
	if m.top != StateLobby {
		return Transition{}, ErrBadState
	}
	if len(m.ctx.Players) >= m.ctx.Config.PlayerCount {
		return Transition{}, ErrLobbyFull
	}
	m.ctx.Players = append(m.ctx.Players, rules.Player{ID: id, Name: name, IsAI: isAI})
	if m.hostID == "" {
		m.hostID = id
	}
	ev := rules.Event{Type: rules.EventPlayerJoined, PlayerID: id, Name: name}
	return Transition{From: from, To: m.path(), Events: []rules.Event{ev}}, nil
}

// PlayerLeft handles PLAYER_LEFT{id}.
func (m *Machine) PlayerLeft(id string) (Transition, error) {
	from := m.path()
	if m.top != StateLobby {
		return Transition{}, ErrBadState
	}
	idx := -1
	for i, p := range m.ctx.Players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Transition{}, ErrPlayerNotFound
	}
	m.ctx.Players = append(m.ctx.Players[:idx], m.ctx.Players[idx+1:]...)
	if m.hostID == id {
		m.hostID = ""
		if len(m.ctx.Players) > 0 {
			m.hostID = m.ctx.Players[0].ID
		}
	}
	ev := rules.Event{Type: rules.EventPlayerLeft, PlayerID: id}
	return Transition{From: from, To: m.path(), Events: []rules.Event{ev}}, nil
}

// StartGame handles START_GAME{id}: runs the setup action then
// automatically advances to playing.awaitingMove.
func (m *Machine) StartGame(id string) (Transition, error) {
	from := m.path()
	if m.top != StateLobby {
		return Transition{}, ErrBadState
	}
	if len(m.ctx.Players) < 2 {
		return Transition{}, ErrNotEnoughPlayers
	}
	if id != m.hostID {
		return Transition{}, ErrNotHost
	}

	m.top = StateSetup
	pieces, holes := boardsetup.Place(m.ctx.Config, m.ctx.Players, m.rng)
	m.ctx.Pieces = pieces
	m.ctx.Holes = holes
	m.ctx.FirstPlayerIndex = 0
	m.ctx.CurrentPlayerID = m.ctx.Players[0].ID
	m.ctx.TurnNumber = 1
	m.ctx.RoundNumber = 1

	m.enterAwaitingMove()
	return Transition{From: from, To: m.path()}, nil
}

// MakeMove handles MAKE_MOVE{playerId, cmd}.
func (m *Machine) MakeMove(playerID string, cmd rules.MoveCommand) (Transition, rules.ApplyResult, error) {
	from := m.path()
	if m.top != StatePlaying || m.sub != SubAwaitingMove {
		return Transition{}, rules.ApplyResult{}, ErrBadState
	}

	playing := true
	result := rules.ApplyMove(m.ctx, playing, playerID, cmd)
	if !result.Valid {
		return Transition{}, result, nil
	}

	m.top, m.sub = StatePlaying, SubCheckingGameEnd
	m.ctx = result.Context
	m.clearTurnTimer()

	switch {
	case m.ctx.WinnerID != "":
		m.top, m.sub = StateEnded, ""
	case result.TriggerStarvation:
		m.top, m.sub = StateStarvation, SubAwaitingChoices
		m.armStarvationTimer()
	default:
		m.enterAwaitingMove()
	}

	return Transition{From: from, To: m.path(), Events: result.Events}, result, nil
}

// StarvationChoice handles STARVATION_CHOICE{playerId,pieceId}.
func (m *Machine) StarvationChoice(playerID, pieceID string) (Transition, error) {
	from := m.path()
	if m.top != StateStarvation || m.sub != SubAwaitingChoices {
		return Transition{}, ErrBadState
	}
	candidates, ok := m.ctx.StarvationCandidates[playerID]
	if !ok {
		return Transition{}, ErrPlayerNotFound
	}
	if !containsString(candidates, pieceID) {
		return Transition{}, ErrNotCandidate
	}
	if _, chosen := m.ctx.StarvationChoices[playerID]; chosen {
		return Transition{}, ErrAlreadyChose
	}

	if m.ctx.StarvationChoices == nil {
		m.ctx.StarvationChoices = map[string]string{}
	}
	m.ctx.StarvationChoices[playerID] = pieceID

	if !m.allChoicesIn() {
		return Transition{From: from, To: m.path()}, nil
	}

	result := rules.ResolveStarvation(m.ctx)
	m.ctx = result.Context
	m.clearStarvationTimer()

	if m.ctx.WinnerID != "" {
		m.top, m.sub = StateEnded, ""
	} else {
		m.top, m.sub = StatePlaying, SubAwaitingMove
		m.armTurnTimer()
	}

	return Transition{From: from, To: m.path(), Events: result.Events}, nil
}

// allChoicesIn reports whether every player with at least one starvation
// candidate has submitted a choice.
func (m *Machine) allChoicesIn() bool {
	for playerID, candidates := range m.ctx.StarvationCandidates {
		if len(candidates) == 0 {
			continue
		}
		if _, ok := m.ctx.StarvationChoices[playerID]; !ok {
			return false
		}
	}
	return true
}

// PlayerDisconnected handles PLAYER_DISCONNECTED{id}.
func (m *Machine) PlayerDisconnected(id string) (Transition, error) {
	from := m.path()
	if m.top != StatePlaying && m.top != StateStarvation && m.top != StatePaused {
		return Transition{}, ErrBadState
	}
	if m.ctx.PlayerByID(id) == nil {
		return Transition{}, ErrPlayerNotFound
	}
	if !m.ctx.IsDisconnected(id) {
		m.ctx.DisconnectedPlayers = append(m.ctx.DisconnectedPlayers, id)
	}

	if m.top == StatePlaying && m.sub == SubAwaitingMove && id == m.ctx.CurrentPlayerID {
		m.clearTurnTimer()
		m.top, m.sub = StatePaused, ""
	}

	return Transition{From: from, To: m.path()}, nil
}

// PlayerReconnected handles PLAYER_RECONNECTED{id}.
func (m *Machine) PlayerReconnected(id string) (Transition, error) {
	from := m.path()
	if m.top != StatePlaying && m.top != StateStarvation && m.top != StatePaused {
		return Transition{}, ErrBadState
	}
	if !m.ctx.IsDisconnected(id) {
		return Transition{}, ErrNotDisconnected
	}
	m.ctx.DisconnectedPlayers = removeString(m.ctx.DisconnectedPlayers, id)

	if m.top == StatePaused {
		m.enterAwaitingMove()
	}

	return Transition{From: from, To: m.path()}, nil
}

// SkipTurn is invoked by the manager when the turn timer fires: no move is
// applied, but the same round-advancement machinery runs.
func (m *Machine) SkipTurn() (Transition, error) {
	from := m.path()
	if m.top != StatePlaying || m.sub != SubAwaitingMove {
		return Transition{}, ErrBadState
	}
	result := rules.SkipTurn(m.ctx)
	m.ctx = result.Context
	m.clearTurnTimer()

	if result.TriggerStarvation {
		m.top, m.sub = StateStarvation, SubAwaitingChoices
		m.armStarvationTimer()
	} else {
		m.enterAwaitingMove()
	}

	return Transition{From: from, To: m.path(), Events: result.Events}, nil
}

// ResolveStarvationTimeout is invoked by the manager when the starvation
// timeout fires: auto-fills any missing choice with the first candidate.
func (m *Machine) ResolveStarvationTimeout() (Transition, error) {
	from := m.path()
	if m.top != StateStarvation || m.sub != SubAwaitingChoices {
		return Transition{}, ErrBadState
	}
	if m.ctx.StarvationChoices == nil {
		m.ctx.StarvationChoices = map[string]string{}
	}
	for playerID, candidates := range m.ctx.StarvationCandidates {
		if len(candidates) == 0 {
			continue
		}
		if _, ok := m.ctx.StarvationChoices[playerID]; !ok {
			m.ctx.StarvationChoices[playerID] = candidates[0]
		}
	}

	result := rules.ResolveStarvation(m.ctx)
	m.ctx = result.Context
	m.clearStarvationTimer()

	if m.ctx.WinnerID != "" {
		m.top, m.sub = StateEnded, ""
	} else {
		m.top, m.sub = StatePlaying, SubAwaitingMove
		m.armTurnTimer()
	}

	return Transition{From: from, To: m.path(), Events: result.Events}, nil
}

func (m *Machine) enterAwaitingMove() {
	m.top, m.sub = StatePlaying, SubAwaitingMove
	m.armTurnTimer()
}

func (m *Machine) armTurnTimer() {
	if m.ctx.Config.TurnTimerMs == nil {
		m.TurnTimerDeadline = nil
		return
	}
	deadline := time.Now().Add(time.Duration(*m.ctx.Config.TurnTimerMs) * time.Millisecond)
	m.TurnTimerDeadline = &deadline
}

func (m *Machine) clearTurnTimer() { m.TurnTimerDeadline = nil }

const defaultStarvationTimeout = 30 * time.Second

func (m *Machine) armStarvationTimer() {
	d := defaultStarvationTimeout
	if m.ctx.Config.TurnTimerMs != nil {
		d = time.Duration(*m.ctx.Config.TurnTimerMs) * time.Millisecond
	}
	deadline := time.Now().Add(d)
	m.StarvationTimerDeadline = &deadline
}

func (m *Machine) clearStarvationTimer() { m.StarvationTimerDeadline = nil }

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func removeString(xs []string, s string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
