// Package manager owns the live set of in-progress games: the map from
// gameId to its machine, the per-game lock, persistence, and the AI
// scheduler subscription — exactly the contract of spec §4.6. It is the
// only place that performs I/O around a game; internal/machine and
// internal/rules stay pure.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jarlboard/server/internal/ai"
	"github.com/jarlboard/server/internal/hex"
	"github.com/jarlboard/server/internal/logger"
	"github.com/jarlboard/server/internal/machine"
	"github.com/jarlboard/server/internal/persistence"
	redisrepo "github.com/jarlboard/server/internal/repository/redis"
	"github.com/jarlboard/server/internal/rules"
)

// Error values returned by the manager's public operations. Each is a
// fixed sentinel rather than a formatted string so callers can compare
// with errors.Is across the package boundary, the same way the machine
// package exposes ErrBadState et al.
var (
	ErrGameNotFound   = fmt.Errorf("manager: game not found")
	ErrGameFull       = fmt.Errorf("manager: game is full")
	ErrPlayerNotFound = fmt.Errorf("manager: player not found")
	ErrMissingAPIKey  = fmt.Errorf("manager: LLM AI requested but no API key is configured")
)

// managedGame is the manager's private authority for one game: the live
// machine plus its persisted version counter.
type managedGame struct {
	machine *machine.Machine
	version int64
}

// Stats summarizes the manager's live game set for operational visibility.
type Stats struct {
	TotalGames int
	ByTopState map[string]int
}

// Manager owns every live game in the process.
type Manager struct {
	store      persistence.Store
	scheduler  *ai.Scheduler
	groqAPIKey string

	mu    sync.RWMutex
	games map[string]*managedGame

	gameLocks sync.Map // gameID -> *sync.Mutex, the per-game lock of spec §4.6

	timers *timerScheduler

	seedSource *rand.Rand
	seedMu     sync.Mutex
}

// Config bundles the manager's external dependencies and tunables, all
// read from internal/config at startup.
type Config struct {
	Store         persistence.Store
	GroqAPIKey    string
	AIMoveTimeout time.Duration
}

// New creates a Manager with an empty game set. Call Recover afterward to
// repopulate it from persistence.
func New(cfg Config) *Manager {
	m := &Manager{
		store:      cfg.Store,
		groqAPIKey: cfg.GroqAPIKey,
		games:      make(map[string]*managedGame),
		seedSource: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	m.scheduler = ai.NewScheduler(m)
	m.scheduler.SetMoveTimeout(cfg.AIMoveTimeout)
	m.timers = newTimerScheduler(m)
	return m
}

// Scheduler exposes the AI scheduler so callers can register OnAIMove
// listeners (e.g. a transport layer broadcasting moves to clients).
func (m *Manager) Scheduler() *ai.Scheduler { return m.scheduler }

// AttachRedis enables low-latency timer firing via Redis keyspace
// notifications. Optional: without it the manager's poll-loop fallback
// still fires every deadline correctly, just up to pollInterval later.
func (m *Manager) AttachRedis(client *redisrepo.Client) {
	m.timers.attachRedis(client)
}

func (m *Manager) gameLock(gameID string) *sync.Mutex {
	v, _ := m.gameLocks.LoadOrStore(gameID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (m *Manager) nextSeed() int64 {
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	return m.seedSource.Int63()
}

// Create starts a new game in the lobby state and returns its id.
func (m *Manager) Create(config rules.GameConfig) string {
	gameID := "game_" + logger.NewRequestID()
	mg := &managedGame{
		machine: machine.New(gameID, config, rand.New(rand.NewSource(m.nextSeed()))),
	}
	m.mu.Lock()
	m.games[gameID] = mg
	m.mu.Unlock()
	return gameID
}

// Join adds a new human or placeholder-AI player to a lobby and returns
// their assigned playerId.
func (m *Manager) Join(gameID, name string, isAI bool) (string, error) {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return "", err
	}

	playerID := "player_" + logger.NewRequestID()
	transition, err := mg.machine.PlayerJoined(playerID, name, isAI)
	if err != nil {
		return "", translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return playerID, nil
}

// Leave removes playerID from a lobby.
func (m *Manager) Leave(gameID, playerID string) error {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return err
	}
	transition, err := mg.machine.PlayerLeft(playerID)
	if err != nil {
		return translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return nil
}

// Start begins the game: playerID must be the host (first joiner).
func (m *Manager) Start(gameID, playerID string) error {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return err
	}
	transition, err := mg.machine.StartGame(playerID)
	if err != nil {
		return translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return nil
}

// MakeMove runs the full move pipeline of spec §4.6 under the per-game
// lock: re-read state, validate the caller's view isn't stale, then
// dispatch the move to the machine, which validates and applies it through
// the rules core.
func (m *Manager) MakeMove(_ context.Context, gameID, playerID string, cmd rules.MoveCommand, turnNumber *int) (ai.MoveResult, error) {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return ai.MoveResult{}, err
	}

	ctxState := mg.machine.Context()
	if mg.machine.TopState() != machine.StatePlaying {
		return ai.MoveResult{Success: false, Error: fmt.Sprintf("Cannot make move in state: %s", mg.machine.TopState())}, nil
	}
	if turnNumber != nil && *turnNumber != ctxState.TurnNumber {
		return ai.MoveResult{Success: false, Error: "Stale move request"}, nil
	}
	if playerID != ctxState.CurrentPlayerID {
		return ai.MoveResult{Success: false, Error: "Not your turn"}, nil
	}

	transition, result, err := mg.machine.MakeMove(playerID, cmd)
	if err != nil {
		return ai.MoveResult{Success: false, Error: err.Error()}, nil
	}
	if !result.Valid {
		return ai.MoveResult{Success: false, Error: string(result.Reason)}, nil
	}
	if dup := duplicatePiecePosition(result.Context.Pieces); dup != "" {
		logger.Get().Error().Str("gameId", gameID).Str("pieceId", dup).
			Msg("move produced duplicate piece positions; board integrity guard tripped")
	}

	m.afterTransition(gameID, mg, transition)
	return ai.MoveResult{Success: true, Events: transition.Events}, nil
}

// duplicatePiecePosition returns the id of a piece sharing its hex with
// another, or "" if every position is unique. A hit here means the rules
// core produced a state rules.ApplyMove should never allow; the manager
// logs it rather than rejecting a move the machine has already committed.
func duplicatePiecePosition(pieces []rules.Piece) string {
	seen := make(map[hex.Coord]string, len(pieces))
	for _, p := range pieces {
		if existing, ok := seen[p.Position]; ok {
			return existing
		}
		seen[p.Position] = p.ID
	}
	return ""
}

// SubmitStarvationChoice records playerID's chosen piece to sacrifice.
func (m *Manager) SubmitStarvationChoice(_ context.Context, gameID, playerID, pieceID string) error {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return err
	}
	transition, err := mg.machine.StarvationChoice(playerID, pieceID)
	if err != nil {
		return translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return nil
}

// OnDisconnect marks playerID disconnected, pausing the game if it was
// their turn.
func (m *Manager) OnDisconnect(gameID, playerID string) error {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return err
	}
	transition, err := mg.machine.PlayerDisconnected(playerID)
	if err != nil {
		return translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return nil
}

// OnReconnect clears playerID's disconnected flag, resuming play if the
// game was paused on their account.
func (m *Manager) OnReconnect(gameID, playerID string) error {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return err
	}
	transition, err := mg.machine.PlayerReconnected(playerID)
	if err != nil {
		return translateMachineErr(err)
	}
	m.afterTransition(gameID, mg, transition)
	return nil
}

// AddAIPlayer joins an AI-controlled player at the given difficulty.
func (m *Manager) AddAIPlayer(gameID string, difficulty ai.Difficulty) (string, error) {
	return m.AddAIPlayerWithConfig(gameID, ai.Config{Difficulty: difficulty})
}

// AddAIPlayerWithConfig joins an AI-controlled player per cfg. Requesting
// the LLM collaborator without a configured API key is rejected rather
// than silently downgrading, so callers notice a misconfiguration.
func (m *Manager) AddAIPlayerWithConfig(gameID string, cfg ai.Config) (string, error) {
	if cfg.UseLLM && m.groqAPIKey == "" {
		return "", ErrMissingAPIKey
	}
	playerID, err := m.Join(gameID, "AI", true)
	if err != nil {
		return "", err
	}
	player := ai.New(cfg, m.groqAPIKey, rand.New(rand.NewSource(m.nextSeed())))
	m.scheduler.RegisterPlayer(gameID, playerID, player)
	return playerID, nil
}

// IsAIPlayer reports whether playerID in gameID is AI-controlled.
func (m *Manager) IsAIPlayer(gameID, playerID string) bool {
	return m.scheduler.IsAIPlayer(gameID, playerID)
}

// GetAIPlayerID returns the id of the AI opponent in a two-player
// human-vs-AI game, for callers that only ever seat a single AI.
func (m *Manager) GetAIPlayerID(gameID string) (string, bool) {
	mg, err := m.get(gameID)
	if err != nil {
		return "", false
	}
	for _, p := range mg.machine.Context().Players {
		if m.scheduler.IsAIPlayer(gameID, p.ID) {
			return p.ID, true
		}
	}
	return "", false
}

// GetState returns a snapshot of gameID's live context and state path.
func (m *Manager) GetState(gameID string) (*rules.GameContext, []string, error) {
	mg, err := m.get(gameID)
	if err != nil {
		return nil, nil, err
	}
	return mg.machine.Context().Clone(), mg.machine.StatePath(), nil
}

// ListGames returns every live game id.
func (m *Manager) ListGames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.games))
	for id := range m.games {
		out = append(out, id)
	}
	return out
}

// GetStats summarizes the live game set.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{TotalGames: len(m.games), ByTopState: make(map[string]int)}
	for _, mg := range m.games {
		stats.ByTopState[mg.machine.TopState()]++
	}
	return stats
}

// Remove drops gameID from the live set and its AI registrations. It does
// not delete persisted history.
func (m *Manager) Remove(gameID string) {
	m.mu.Lock()
	delete(m.games, gameID)
	m.mu.Unlock()
	m.timers.forget(gameID)
	m.scheduler.ForgetGame(gameID)
	m.gameLocks.Delete(gameID)
}

// Shutdown stops all background timer scheduling. Live games remain in
// memory; a restart followed by Recover reconstructs them from storage.
func (m *Manager) Shutdown() {
	m.timers.stop()
}

// CurrentState implements ai.GameSubmitter.
func (m *Manager) CurrentState(gameID string) (*rules.GameContext, string, bool) {
	mg, err := m.get(gameID)
	if err != nil {
		return nil, "", false
	}
	return mg.machine.Context(), mg.machine.TopState(), true
}

// snapshotBlob is the on-disk shape of a persisted snapshot's State bytes,
// matching exactly what persist() marshals.
type snapshotBlob struct {
	TopState string              `json:"topState"`
	Context  *rules.GameContext `json:"context"`
}

// Recover reconstructs every non-ended game from storage into memory,
// re-registers each AI-controlled player's player with the scheduler, and
// returns how many games were restored. Called once at startup, after
// New and before serving any request.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	snapshots, err := m.store.LoadActiveSnapshots(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover: load active snapshots: %w", err)
	}

	restored := 0
	for _, snap := range snapshots {
		var blob snapshotBlob
		if err := json.Unmarshal(snap.State, &blob); err != nil {
			logger.Get().Error().Str("gameId", snap.GameID).Err(err).
				Msg("skipping unrecoverable snapshot: malformed state blob")
			continue
		}
		if dup := duplicatePiecePosition(blob.Context.Pieces); dup != "" {
			logger.Get().Error().Str("gameId", snap.GameID).Str("pieceId", dup).
				Msg("skipping unrecoverable snapshot: duplicate piece positions")
			continue
		}

		mc := machine.Resume(blob.TopState, blob.Context, rand.New(rand.NewSource(m.nextSeed())))
		mg := &managedGame{machine: mc, version: snap.Version}

		m.mu.Lock()
		m.games[snap.GameID] = mg
		m.mu.Unlock()

		for _, p := range blob.Context.Players {
			if !p.IsAI {
				continue
			}
			player := ai.New(ai.Config{Difficulty: ai.DifficultyRandom}, m.groqAPIKey, rand.New(rand.NewSource(m.nextSeed())))
			m.scheduler.RegisterPlayer(snap.GameID, p.ID, player)
		}
		m.timers.rearm(snap.GameID, mc)
		restored++
	}
	return restored, nil
}

func (m *Manager) get(gameID string) (*managedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mg, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return mg, nil
}

func translateMachineErr(err error) error {
	switch err {
	case machine.ErrPlayerNotFound:
		return ErrPlayerNotFound
	case machine.ErrLobbyFull:
		return ErrGameFull
	default:
		return err
	}
}

// afterTransition applies the manager-level bookkeeping spec §4.6
// describes as "subscription side-effects": arm/disarm the matching
// timer, then fire off persistence and AI scheduling without holding the
// per-game lock.
func (m *Manager) afterTransition(gameID string, mg *managedGame, transition machine.Transition) {
	m.timers.rearm(gameID, mg.machine)

	topState := mg.machine.TopState()
	subState := ""
	if path := mg.machine.StatePath(); len(path) > 1 {
		subState = path[1]
	}
	ctxSnapshot := mg.machine.Context().Clone()

	go m.persistAndSchedule(gameID, mg, topState, subState, ctxSnapshot, transition.Events)
}

func (m *Manager) persistAndSchedule(gameID string, mg *managedGame, topState, subState string, ctxSnapshot *rules.GameContext, events []rules.Event) {
	if m.store != nil {
		m.persist(gameID, mg, topState, ctxSnapshot, events)
	}
	m.scheduler.HandleTransition(gameID, topState, subState, ctxSnapshot)
}

func (m *Manager) persist(gameID string, mg *managedGame, topState string, ctxSnapshot *rules.GameContext, events []rules.Event) {
	ctx := context.Background()

	stateBlob, err := json.Marshal(struct {
		TopState string              `json:"topState"`
		Context  *rules.GameContext `json:"context"`
	}{TopState: topState, Context: ctxSnapshot})
	if err != nil {
		logger.Get().Error().Str("gameId", gameID).Err(err).Msg("failed to marshal game snapshot")
		return
	}

	m.mu.Lock()
	mg.version++
	version := mg.version
	m.mu.Unlock()

	if err := m.store.SaveSnapshot(ctx, gameID, stateBlob, version, topState); err != nil {
		logger.Get().Error().Str("gameId", gameID).Err(err).Msg("failed to persist game snapshot")
	}
	if err := m.store.SaveEvent(ctx, gameID, "STATE_"+upper(topState), stateBlob); err != nil {
		logger.Get().Error().Str("gameId", gameID).Err(err).Msg("failed to persist state event")
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := m.store.SaveEvent(ctx, gameID, string(ev.Type), data); err != nil {
			logger.Get().Error().Str("gameId", gameID).Err(err).Msg("failed to persist event")
		}
	}
}

// timerSource is the slice of *machine.Machine the timer scheduler needs.
// Declared here (rather than depending on the concrete type directly in
// timer.go) keeps that file easy to unit test against a stub.
type timerSource interface {
	NextDeadline() *time.Time
}

// fireTimer is invoked by the timer scheduler, from either the Redis
// keyspace listener or the poll-loop fallback, whenever gameID's deadline
// may have passed. It re-verifies under the per-game lock before acting,
// so a duplicate or stale firing (the keyspace event and the poll tick
// both observing the same expiry) is a safe no-op: by the time the
// second caller arrives the deadline has already been cleared.
func (m *Manager) fireTimer(gameID string) {
	lock := m.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	mg, err := m.get(gameID)
	if err != nil {
		return
	}

	now := time.Now()
	var transition machine.Transition
	switch {
	case mg.machine.TopState() == machine.StatePlaying && mg.machine.TurnTimerDeadline != nil && !now.Before(*mg.machine.TurnTimerDeadline):
		transition, err = mg.machine.SkipTurn()
	case mg.machine.TopState() == machine.StateStarvation && mg.machine.StarvationTimerDeadline != nil && !now.Before(*mg.machine.StarvationTimerDeadline):
		transition, err = mg.machine.ResolveStarvationTimeout()
	default:
		return
	}
	if err != nil {
		logger.Get().Warn().Str("gameId", gameID).Err(err).Msg("timer fire rejected by machine, deadline likely already cleared")
		return
	}
	m.afterTransition(gameID, mg, transition)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
