// Package boardsetup deterministically places Jarls, Warriors, and holes
// for a new game, per the setup action the game machine runs on entering
// the setup state.
package boardsetup

import (
	"math/rand"

	"github.com/jarlboard/server/internal/hex"
	"github.com/jarlboard/server/internal/logger"
	"github.com/jarlboard/server/internal/rules"
)

// Place computes the initial pieces and holes for config and the given
// players (in join order). rng drives only hole sampling — Jarl and
// Warrior placement is fully deterministic given config and player order,
// so that setup is reproducible from a snapshot without needing to persist
// the chosen hole positions separately (they're serialized on GameContext
// either way, but determinism keeps recovery debuggable).
func Place(config rules.GameConfig, players []rules.Player, rng *rand.Rand) ([]rules.Piece, []hex.Coord) {
	var pieces []rules.Piece
	jarlLines := make([][]hex.Coord, len(players))

	for i, player := range players {
		dirIndex := (i * 6) / len(players)
		jarlPos := hex.Direction(dirIndex).Scale(config.BoardRadius)
		pieces = append(pieces, rules.Piece{
			ID:       pieceID(),
			Type:     rules.PieceJarl,
			PlayerID: player.ID,
			Position: jarlPos,
		})

		toThrone := hex.Opposite(dirIndex)
		line := hex.Line(jarlPos, toThrone, config.BoardRadius)
		jarlLines[i] = append([]hex.Coord{jarlPos}, line...)

		placed := 0
		for _, pos := range line {
			if placed >= config.WarriorCount || pos == hex.Throne {
				break
			}
			pieces = append(pieces, rules.Piece{
				ID:       pieceID(),
				Type:     rules.PieceWarrior,
				PlayerID: player.ID,
				Position: pos,
			})
			placed++
		}
	}

	holes := sampleHoles(config, jarlLines, rng)
	return pieces, holes
}

// sampleHoles picks config.Terrain.BaseHoleCount() interior hexes (never the
// throne, never a hex on any player's Jarl-to-Throne line) uniformly at
// random without replacement.
func sampleHoles(config rules.GameConfig, jarlLines [][]hex.Coord, rng *rand.Rand) []hex.Coord {
	reserved := map[hex.Coord]bool{hex.Throne: true}
	for _, line := range jarlLines {
		for _, c := range line {
			reserved[c] = true
		}
	}

	var candidates []hex.Coord
	for q := -config.BoardRadius; q <= config.BoardRadius; q++ {
		for r := -config.BoardRadius; r <= config.BoardRadius; r++ {
			c := hex.Coord{Q: q, R: r}
			if !hex.OnBoard(c, config.BoardRadius) || hex.OnEdge(c, config.BoardRadius) {
				continue
			}
			if reserved[c] {
				continue
			}
			candidates = append(candidates, c)
		}
	}

	n := config.Terrain.BaseHoleCount()
	if n > len(candidates) {
		n = len(candidates)
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	return append([]hex.Coord(nil), candidates[:n]...)
}

func pieceID() string {
	return "piece_" + logger.NewRequestID()
}
