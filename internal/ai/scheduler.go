package ai

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/jarlboard/server/internal/logger"
	"github.com/jarlboard/server/internal/machine"
	"github.com/jarlboard/server/internal/rules"
)

// moveTimeout is how long Scheduler waits for a registered Player's
// GenerateMove before discarding the result and submitting a random
// fallback instead (spec §4.7: "10-second wall-clock timer").
var moveTimeout = defaultMoveTimeout

// Scheduler reacts to machine state transitions exactly per spec §4.7: on
// playing.awaitingMove, race the seated AI's move generation against a
// timeout and submit the result (or a random fallback); on
// starvation.awaitingChoices, submit a starvation choice for every AI that
// hasn't made one yet. It runs inside the same subscription that persists
// transitions, grounded on the teacher's TimerListener dual-trigger
// discipline of re-verifying state before acting.
type Scheduler struct {
	submitter GameSubmitter

	mu      sync.Mutex
	players map[string]map[string]Player // gameID -> playerID -> Player
	pending map[string]bool              // dedup key -> in flight

	callbacksMu sync.Mutex
	callbacks   []func(gameID, playerID string, result MoveResult)
}

// NewScheduler builds a Scheduler that submits through submitter.
func NewScheduler(submitter GameSubmitter) *Scheduler {
	return &Scheduler{
		submitter: submitter,
		players:   make(map[string]map[string]Player),
		pending:   make(map[string]bool),
	}
}

// SetMoveTimeout overrides how long the scheduler waits for a move before
// falling back to random, e.g. from configuration at startup. A zero or
// negative value is ignored, leaving the default in place.
func (s *Scheduler) SetMoveTimeout(d time.Duration) {
	if d > 0 {
		moveTimeout = d
	}
}

// RegisterPlayer attaches p as the AI controlling playerID within gameID.
func (s *Scheduler) RegisterPlayer(gameID, playerID string, p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.players[gameID] == nil {
		s.players[gameID] = make(map[string]Player)
	}
	s.players[gameID][playerID] = p
}

// ForgetGame drops all AI registrations for gameID, e.g. on remove/shutdown.
func (s *Scheduler) ForgetGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, gameID)
}

// IsAIPlayer reports whether playerID in gameID is controlled by an
// AI registered with this scheduler.
func (s *Scheduler) IsAIPlayer(gameID, playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[gameID][playerID]
	return ok
}

// OnAIMove registers a callback invoked after every AI-submitted move,
// success or failure, so the caller (e.g. a transport layer) can broadcast it.
func (s *Scheduler) OnAIMove(cb func(gameID, playerID string, result MoveResult)) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

func (s *Scheduler) notify(gameID, playerID string, result MoveResult) {
	s.callbacksMu.Lock()
	cbs := append([]func(string, string, MoveResult){}, s.callbacks...)
	s.callbacksMu.Unlock()
	for _, cb := range cbs {
		cb(gameID, playerID, result)
	}
}

// HandleTransition is the manager's subscription hook: called after every
// machine transition with the resulting state. It only acts on
// playing.awaitingMove and starvation.awaitingChoices; every other state
// is a no-op.
func (s *Scheduler) HandleTransition(gameID, topState, subState string, ctx *rules.GameContext) {
	switch {
	case topState == machine.StatePlaying && subState == machine.SubAwaitingMove:
		s.scheduleMove(gameID, ctx)
	case topState == machine.StateStarvation && subState == machine.SubAwaitingChoices:
		s.scheduleStarvationChoices(gameID, ctx)
	}
}

func (s *Scheduler) scheduleMove(gameID string, ctx *rules.GameContext) {
	playerID := ctx.CurrentPlayerID
	player := s.lookupPlayer(gameID, playerID)
	if player == nil {
		return
	}

	key := dedupKey(gameID, playerID, "turn", ctx.TurnNumber)
	if !s.claim(key) {
		return
	}

	turnNumber := ctx.TurnNumber
	go func() {
		defer s.release(key)
		s.generateAndSubmitMove(gameID, playerID, player, turnNumber)
	}()
}

func (s *Scheduler) generateAndSubmitMove(gameID, playerID string, player Player, turnNumber int) {
	state, topState, ok := s.submitter.CurrentState(gameID)
	if !ok || topState != machine.StatePlaying || state.CurrentPlayerID != playerID || state.TurnNumber != turnNumber {
		return
	}

	cmd, err := s.raceGenerateMove(player, state, playerID)
	if err != nil {
		logger.Get().Warn().Str("gameId", gameID).Str("playerId", playerID).Err(err).
			Msg("ai move generation failed or timed out, falling back to random")
		cmd, err = NewRandomAI(defaultFallbackRNG()).GenerateMove(context.Background(), state, playerID)
		if err != nil {
			logger.Get().Error().Str("gameId", gameID).Str("playerId", playerID).Err(err).
				Msg("ai random fallback also failed to produce a move")
			return
		}
	}

	// Re-verify under the manager's own lock (via MakeMove's pipeline)
	// before committing; pass turnNumber so a stale submission is rejected
	// rather than silently applied to a different turn.
	tn := turnNumber
	result, err := s.submitter.MakeMove(context.Background(), gameID, playerID, cmd, &tn)
	if err != nil {
		logger.Get().Error().Str("gameId", gameID).Str("playerId", playerID).Err(err).Msg("ai move submission failed")
		return
	}
	s.notify(gameID, playerID, result)
}

func (s *Scheduler) raceGenerateMove(player Player, state *rules.GameContext, playerID string) (rules.MoveCommand, error) {
	ctx, cancel := context.WithTimeout(context.Background(), moveTimeout)
	defer cancel()

	type outcome struct {
		cmd rules.MoveCommand
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		cmd, err := player.GenerateMove(ctx, state, playerID)
		ch <- outcome{cmd, err}
	}()

	select {
	case o := <-ch:
		return o.cmd, o.err
	case <-ctx.Done():
		return rules.MoveCommand{}, ctx.Err()
	}
}

func (s *Scheduler) scheduleStarvationChoices(gameID string, ctx *rules.GameContext) {
	for playerID, candidates := range ctx.StarvationCandidates {
		if len(candidates) == 0 {
			continue
		}
		if _, already := ctx.StarvationChoices[playerID]; already {
			continue
		}
		player := s.lookupPlayer(gameID, playerID)
		if player == nil {
			continue
		}

		key := dedupKey(gameID, playerID, "round", ctx.RoundNumber)
		if !s.claim(key) {
			continue
		}
		pid, cands := playerID, candidates
		go func() {
			defer s.release(key)
			s.generateAndSubmitStarvationChoice(gameID, pid, player, cands)
		}()
	}
}

func (s *Scheduler) generateAndSubmitStarvationChoice(gameID, playerID string, player Player, candidates []string) {
	state, topState, ok := s.submitter.CurrentState(gameID)
	if !ok || topState != machine.StateStarvation {
		return
	}
	pieceID, err := player.MakeStarvationChoice(state, candidates, playerID)
	if err != nil {
		logger.Get().Warn().Str("gameId", gameID).Str("playerId", playerID).Err(err).
			Msg("ai starvation choice failed, leaving to timeout backstop")
		return
	}
	if err := s.submitter.SubmitStarvationChoice(context.Background(), gameID, playerID, pieceID); err != nil {
		logger.Get().Error().Str("gameId", gameID).Str("playerId", playerID).Err(err).
			Msg("ai starvation choice submission failed")
	}
}

func (s *Scheduler) lookupPlayer(gameID, playerID string) Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[gameID][playerID]
}

func (s *Scheduler) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] {
		return false
	}
	s.pending[key] = true
	return true
}

func (s *Scheduler) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

func dedupKey(gameID, playerID, unit string, n int) string {
	return gameID + "|" + playerID + "|" + unit + "|" + strconv.Itoa(n)
}

// fallbackRNG is shared by every random-fallback draw across all games; it
// does not need to be reproducible, unlike the seeded RNG board setup uses,
// so a single package-level source guarded by its own mutex is sufficient.
var fallbackRNG = rand.New(rand.NewSource(time.Now().UnixNano()))
var fallbackRNGMu sync.Mutex

type lockedRand struct{}

func (lockedRand) Intn(n int) int {
	fallbackRNGMu.Lock()
	defer fallbackRNGMu.Unlock()
	return fallbackRNG.Intn(n)
}

func defaultFallbackRNG() RandSource {
	return lockedRand{}
}
