package machine

import (
	"math/rand"
	"testing"

	"github.com/jarlboard/server/internal/rules"
)

func newTestMachine(playerCount int) *Machine {
	config := rules.GameConfig{
		PlayerCount:  playerCount,
		BoardRadius:  4,
		WarriorCount: 6,
		Terrain:      rules.TerrainCalm,
	}
	return New("g1", config, rand.New(rand.NewSource(7)))
}

func TestLobbyJoinLeaveAndStart(t *testing.T) {
	m := newTestMachine(2)

	if _, err := m.PlayerJoined("p1", "Alice", false); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if _, err := m.PlayerJoined("p2", "Bob", false); err != nil {
		t.Fatalf("join p2: %v", err)
	}
	if _, err := m.PlayerJoined("p3", "Carl", false); err != ErrLobbyFull {
		t.Fatalf("expected ErrLobbyFull, got %v", err)
	}

	if _, err := m.StartGame("p2"); err != ErrNotHost {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}

	tr, err := m.StartGame("p1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := m.StatePath(); len(got) != 2 || got[0] != StatePlaying || got[1] != SubAwaitingMove {
		t.Fatalf("expected playing.awaitingMove, got %v", got)
	}
	if len(tr.To) != 2 {
		t.Fatalf("transition To should be the final sub-state, got %v", tr.To)
	}
	if len(m.Context().Pieces) == 0 {
		t.Fatal("expected setup to have placed pieces")
	}
}

func TestStartGameRejectsTooFewPlayers(t *testing.T) {
	m := newTestMachine(2)
	if _, err := m.PlayerJoined("p1", "Alice", false); err != nil {
		t.Fatal(err)
	}
	if _, err := m.StartGame("p1"); err != ErrNotEnoughPlayers {
		t.Fatalf("expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestDisconnectCurrentPlayerPauses(t *testing.T) {
	m := newTestMachine(2)
	m.PlayerJoined("p1", "Alice", false)
	m.PlayerJoined("p2", "Bob", false)
	if _, err := m.StartGame("p1"); err != nil {
		t.Fatal(err)
	}

	current := m.Context().CurrentPlayerID
	if _, err := m.PlayerDisconnected(current); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if m.TopState() != StatePaused {
		t.Fatalf("expected paused, got %s", m.TopState())
	}

	if _, err := m.PlayerReconnected(current); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if got := m.StatePath(); got[0] != StatePlaying || got[1] != SubAwaitingMove {
		t.Fatalf("expected playing.awaitingMove after reconnect, got %v", got)
	}
}

func TestDisconnectNonCurrentPlayerDoesNotPause(t *testing.T) {
	m := newTestMachine(2)
	m.PlayerJoined("p1", "Alice", false)
	m.PlayerJoined("p2", "Bob", false)
	m.StartGame("p1")

	current := m.Context().CurrentPlayerID
	other := "p1"
	if current == "p1" {
		other = "p2"
	}

	if _, err := m.PlayerDisconnected(other); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if m.TopState() == StatePaused {
		t.Fatal("disconnecting a non-current player should not pause the game")
	}
}

func TestMakeMoveRejectedOutsideAwaitingMove(t *testing.T) {
	m := newTestMachine(2)
	_, _, err := m.MakeMove("p1", rules.MoveCommand{})
	if err != ErrBadState {
		t.Fatalf("expected ErrBadState before game start, got %v", err)
	}
}

func TestStarvationChoiceRejectsUnknownCandidate(t *testing.T) {
	m := newTestMachine(2)
	m.top, m.sub = StateStarvation, SubAwaitingChoices
	m.ctx.StarvationCandidates = map[string][]string{"p1": {"piece_a"}}
	m.ctx.StarvationChoices = map[string]string{}

	if _, err := m.StarvationChoice("p1", "piece_zzz"); err != ErrNotCandidate {
		t.Fatalf("expected ErrNotCandidate, got %v", err)
	}
}
