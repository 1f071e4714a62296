// Command selfplay runs one or more AI-vs-AI games entirely in-process,
// against the in-memory persistence store, to exercise the full manager
// -> machine -> rules pipeline headlessly. Grounded on the teacher's
// cmd/botmatch: same flag shape (matchup, game count, worker
// concurrency, JSON output), adapted from Diplomacy's per-power
// difficulty config to this game's two-AI-difficulty-seats setup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jarlboard/server/internal/ai"
	"github.com/jarlboard/server/internal/manager"
	"github.com/jarlboard/server/internal/persistence/memory"
	"github.com/jarlboard/server/internal/rules"
)

type matchResult struct {
	GameName        string `json:"gameName"`
	WinnerDifficulty string `json:"winnerDifficulty,omitempty"`
	WinCondition    string `json:"winCondition,omitempty"`
	TurnCount       int    `json:"turnCount"`
	Error           string `json:"error,omitempty"`
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		matchup     string
		numGames    int
		workers     int
		playerCount int
		boardRadius int
		maxTurns    int
		jsonOut     bool
	)

	flag.StringVar(&matchup, "matchup", "random-vs-random", "Difficulty matchup, e.g. hard-vs-random")
	flag.IntVar(&numGames, "n", 1, "Number of games to run")
	flag.IntVar(&workers, "workers", 1, "Concurrency (parallel games)")
	flag.IntVar(&playerCount, "players", 2, "Players per game")
	flag.IntVar(&boardRadius, "radius", 4, "Board radius")
	flag.IntVar(&maxTurns, "max-turns", 500, "Turn cap before a game is abandoned as a draw")
	flag.BoolVar(&jsonOut, "json", false, "Output results as JSON")
	flag.Parse()

	difficulties := parseMatchup(matchup, playerCount)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make([]matchResult, numGames)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for i := 0; i < numGames; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			name := fmt.Sprintf("selfplay-%d", idx+1)
			results[idx] = runOneGame(ctx, name, difficulties, boardRadius, maxTurns)
			log.Info().Str("game", name).Str("winnerDifficulty", results[idx].WinnerDifficulty).
				Int("turns", results[idx].TurnCount).Msg("game completed")
		}(i)
	}
	wg.Wait()

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(results)
		return
	}
	printSummary(results)
}

func runOneGame(ctx context.Context, name string, difficulties []ai.Difficulty, boardRadius, maxTurns int) matchResult {
	store := memory.New()
	mgr := manager.New(manager.Config{Store: store, AIMoveTimeout: 5 * time.Second})
	defer mgr.Shutdown()

	gameID := mgr.Create(rules.GameConfig{
		PlayerCount:  len(difficulties),
		BoardRadius:  boardRadius,
		WarriorCount: 6,
		Terrain:      rules.TerrainCalm,
	})

	var hostID string
	difficultyOf := make(map[string]ai.Difficulty, len(difficulties))
	for i, d := range difficulties {
		playerID, err := mgr.AddAIPlayer(gameID, d)
		if err != nil {
			return matchResult{GameName: name, Error: err.Error()}
		}
		difficultyOf[playerID] = d
		if i == 0 {
			hostID = playerID
		}
	}

	if err := mgr.Start(gameID, hostID); err != nil {
		return matchResult{GameName: name, Error: err.Error()}
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return matchResult{GameName: name, Error: "cancelled"}
		default:
		}
		gameCtx, path, err := mgr.GetState(gameID)
		if err != nil {
			return matchResult{GameName: name, Error: err.Error()}
		}
		if path[0] == "ended" || gameCtx.WinnerID != "" {
			return matchResult{
				GameName:         name,
				WinnerDifficulty: string(difficultyOf[gameCtx.WinnerID]),
				WinCondition:     string(gameCtx.WinCondition),
				TurnCount:        gameCtx.TurnNumber,
			}
		}
		if gameCtx.TurnNumber > maxTurns {
			return matchResult{GameName: name, TurnCount: gameCtx.TurnNumber, Error: "turn cap reached, treated as a draw"}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return matchResult{GameName: name, Error: "timed out waiting for game to finish"}
}

func parseMatchup(s string, playerCount int) []ai.Difficulty {
	left, right, ok := strings.Cut(s, "-vs-")
	if !ok || left == "" || right == "" {
		left, right = "random", "random"
	}
	out := make([]ai.Difficulty, playerCount)
	out[0] = ai.Difficulty(left)
	for i := 1; i < playerCount; i++ {
		out[i] = ai.Difficulty(right)
	}
	return out
}

func printSummary(results []matchResult) {
	wins := make(map[string]int)
	errCount := 0
	for _, r := range results {
		if r.Error != "" {
			errCount++
			continue
		}
		wins[r.WinnerDifficulty]++
	}
	fmt.Printf("\nResults (%d games, %d errors):\n", len(results), errCount)
	difficulties := make([]string, 0, len(wins))
	for d := range wins {
		difficulties = append(difficulties, d)
	}
	sort.Strings(difficulties)
	for _, d := range difficulties {
		fmt.Printf("  %-20s %d wins\n", d, wins[d])
	}
}
