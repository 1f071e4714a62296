package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jarlboard/server/internal/rules"
)

// groqChatURL is the Groq-hosted OpenAI-compatible chat completions
// endpoint. No third-party LLM client exists anywhere in the example
// corpus this module was built from, so this talks to it directly over
// net/http/encoding/json rather than reaching for an unseen dependency.
const groqChatURL = "https://api.groq.com/openai/v1/chat/completions"

const groqModel = "llama-3.3-70b-versatile"

// GroqAI treats a remote LLM as an opaque move-selection collaborator: it
// is shown the numbered list of legal moves and asked to return the index
// of the one it prefers. fallback handles starvation choices and any
// response the model returns that doesn't parse to a legal index, so a
// malformed completion degrades to random play instead of failing the
// turn outright.
type GroqAI struct {
	apiKey   string
	client   *http.Client
	fallback Player
}

// NewGroqAI builds a GroqAI using fallback for starvation choices and
// unparseable completions.
func NewGroqAI(apiKey string, fallback Player) *GroqAI {
	return &GroqAI{
		apiKey:   apiKey,
		client:   &http.Client{Timeout: defaultMoveTimeout},
		fallback: fallback,
	}
}

type groqChatRequest struct {
	Model    string        `json:"model"`
	Messages []groqMessage `json:"messages"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Choices []struct {
		Message groqMessage `json:"message"`
	} `json:"choices"`
}

// GenerateMove implements Player.
func (a *GroqAI) GenerateMove(ctx context.Context, state *rules.GameContext, playerID string) (rules.MoveCommand, error) {
	moves := rules.LegalMoves(state, playerID)
	if len(moves) == 0 {
		return rules.MoveCommand{}, ErrNoLegalMoves
	}

	idx, err := a.chooseIndex(ctx, movePrompt(moves), len(moves))
	if err != nil {
		return a.fallback.GenerateMove(ctx, state, playerID)
	}
	return moves[idx], nil
}

// MakeStarvationChoice implements Player by delegating to fallback: the
// starvation decision is low-stakes enough that a heuristic/random pick
// is not worth a second network round trip under the same move timeout.
func (a *GroqAI) MakeStarvationChoice(state *rules.GameContext, candidates []string, playerID string) (string, error) {
	return a.fallback.MakeStarvationChoice(state, candidates, playerID)
}

func movePrompt(moves []rules.MoveCommand) string {
	var b strings.Builder
	b.WriteString("You are playing a hex-board Viking strategy game. Choose the best move by its number.\n")
	for i, m := range moves {
		fmt.Fprintf(&b, "%d: move piece %s to (%d,%d)\n", i, m.PieceID, m.Destination.Q, m.Destination.R)
	}
	b.WriteString("Respond with only the number of your chosen move.")
	return b.String()
}

func (a *GroqAI) chooseIndex(ctx context.Context, prompt string, numChoices int) (int, error) {
	reqBody := groqChatRequest{
		Model: groqModel,
		Messages: []groqMessage{
			{Role: "user", Content: prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("groq: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultMoveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, groqChatURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("groq: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("groq: unexpected status %d", resp.StatusCode)
	}

	var parsed groqChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("groq: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return 0, fmt.Errorf("groq: empty choices")
	}

	idx, err := strconv.Atoi(strings.TrimSpace(parsed.Choices[0].Message.Content))
	if err != nil || idx < 0 || idx >= numChoices {
		return 0, fmt.Errorf("groq: unparseable or out-of-range move index %q", parsed.Choices[0].Message.Content)
	}
	return idx, nil
}
