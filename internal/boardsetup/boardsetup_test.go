package boardsetup

import (
	"math/rand"
	"testing"

	"github.com/jarlboard/server/internal/hex"
	"github.com/jarlboard/server/internal/rules"
)

func testConfig(playerCount int) rules.GameConfig {
	return rules.GameConfig{
		PlayerCount:  playerCount,
		BoardRadius:  4,
		WarriorCount: 6,
		Terrain:      rules.TerrainCalm,
	}
}

func testPlayers(n int) []rules.Player {
	players := make([]rules.Player, n)
	for i := range players {
		players[i] = rules.Player{ID: string(rune('a' + i))}
	}
	return players
}

func TestPlaceOneJarlPerPlayerOnEdge(t *testing.T) {
	config := testConfig(4)
	players := testPlayers(4)
	pieces, _ := Place(config, players, rand.New(rand.NewSource(1)))

	jarls := map[string]hex.Coord{}
	for _, p := range pieces {
		if p.Type == rules.PieceJarl {
			jarls[p.PlayerID] = p.Position
		}
	}
	if len(jarls) != 4 {
		t.Fatalf("expected 4 jarls, got %d", len(jarls))
	}
	for player, pos := range jarls {
		if !hex.OnEdge(pos, config.BoardRadius) {
			t.Errorf("player %s jarl %v is not on the board edge", player, pos)
		}
	}
}

func TestPlaceWarriorsLieOnStraightLineToThrone(t *testing.T) {
	config := testConfig(3)
	players := testPlayers(3)
	pieces, holes := Place(config, players, rand.New(rand.NewSource(2)))

	holeSet := map[hex.Coord]bool{}
	for _, h := range holes {
		holeSet[h] = true
	}

	var jarlPos map[string]hex.Coord = map[string]hex.Coord{}
	for _, p := range pieces {
		if p.Type == rules.PieceJarl {
			jarlPos[p.PlayerID] = p.Position
		}
	}

	for _, p := range pieces {
		if p.Type != rules.PieceWarrior {
			continue
		}
		jarl := jarlPos[p.PlayerID]
		d, ok := hex.DirectionBetween(jarl, p.Position)
		if !ok {
			t.Errorf("warrior %v for player %s is not colinear with its jarl %v", p.Position, p.PlayerID, jarl)
			continue
		}
		wantDir, _ := hex.DirectionBetween(jarl, hex.Throne)
		if d != wantDir {
			t.Errorf("warrior %v is not on the jarl-to-throne line (dir %d, want %d)", p.Position, d, wantDir)
		}
		if holeSet[p.Position] {
			t.Errorf("warrior placed on a hole at %v", p.Position)
		}
		if p.Position == hex.Throne {
			t.Errorf("warrior placed on the throne")
		}
	}
}

func TestPlaceHolesAvoidThroneAndJarlLines(t *testing.T) {
	config := testConfig(2)
	config.Terrain = rules.TerrainChaotic
	players := testPlayers(2)
	pieces, holes := Place(config, players, rand.New(rand.NewSource(3)))

	if len(holes) != config.Terrain.BaseHoleCount() {
		t.Fatalf("expected %d holes, got %d", config.Terrain.BaseHoleCount(), len(holes))
	}

	occupied := map[hex.Coord]bool{}
	for _, p := range pieces {
		occupied[p.Position] = true
	}

	seen := map[hex.Coord]bool{}
	for _, h := range holes {
		if h == hex.Throne {
			t.Errorf("hole placed on the throne")
		}
		if occupied[h] {
			t.Errorf("hole at %v collides with a placed piece", h)
		}
		if seen[h] {
			t.Errorf("duplicate hole %v", h)
		}
		seen[h] = true
		if !hex.OnBoard(h, config.BoardRadius) || hex.OnEdge(h, config.BoardRadius) {
			t.Errorf("hole %v is not an interior hex", h)
		}
	}
}

func TestPlaceIsDeterministicGivenSameRng(t *testing.T) {
	config := testConfig(5)
	players := testPlayers(5)

	pieces1, holes1 := Place(config, players, rand.New(rand.NewSource(42)))
	pieces2, holes2 := Place(config, players, rand.New(rand.NewSource(42)))

	if len(pieces1) != len(pieces2) {
		t.Fatalf("piece counts differ: %d vs %d", len(pieces1), len(pieces2))
	}
	for i := range pieces1 {
		if pieces1[i].Type != pieces2[i].Type || pieces1[i].PlayerID != pieces2[i].PlayerID || pieces1[i].Position != pieces2[i].Position {
			t.Errorf("piece %d differs between identically-seeded runs", i)
		}
	}
	for i := range holes1 {
		if holes1[i] != holes2[i] {
			t.Errorf("hole %d differs between identically-seeded runs", i)
		}
	}
}
