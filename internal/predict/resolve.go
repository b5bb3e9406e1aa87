package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"virtus/internal/ai"
	"virtus/internal/models"
	"virtus/internal/retry"
)

// Outcome is one settled result from the post-mortem resolution pass.
type Outcome struct {
	GameID string
	Status models.BetStatus
	Reason string
}

type rawOutcome struct {
	GameID string `json:"game_id"`
	Result string `json:"result"`
	Reason string `json:"reason"`
}

// ResolveOutcomes asks the model to settle pending tickets against the
// real final scores. Tickets the model cannot verify come back VOID with
// a reason; games it knows nothing about are simply absent from the
// result and stay pending.
func (c *Client) ResolveOutcomes(ctx context.Context, tickets []models.Ticket) ([]Outcome, error) {
	if len(tickets) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Settle the following predictions against the real final results. Use web search.\n\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "- game_id=%s | %s vs %s | pick: %s | placed: %s\n",
			t.GameID, t.HomeTeam, t.AwayTeam, t.Prediction, t.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	b.WriteString(`
RETURN STRICT JSON:
[{"game_id": "string", "result": "WON" | "LOST" | "VOID", "reason": "string"}]
Rules: WON only when the pick verifiably hit. VOID when the game was
postponed or cancelled. Omit any game whose result is not yet final.`)

	system := fmt.Sprintf("You are a settlement auditor for sports predictions. Current real timestamp: %s. Respond with strict JSON only.",
		c.localNow().Format("Monday, 2 January 2006 at 15:04 (MST)"))

	var raw string
	err := retry.Do(ctx, "resolve_outcomes", c.Retry, func(ctx context.Context) error {
		var genErr error
		raw, genErr = c.Gen.Generate(ctx, system, b.String(), ai.GenOptions{
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			WebSearch:   true,
		})
		return genErr
	})
	if err != nil {
		return nil, err
	}

	body, ok := extractJSONArray(raw)
	if !ok {
		return nil, ErrMalformedResponse
	}
	var records []rawOutcome
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, ErrMalformedResponse
	}

	known := make(map[string]bool, len(tickets))
	for _, t := range tickets {
		known[t.GameID] = true
	}

	out := make([]Outcome, 0, len(records))
	for _, r := range records {
		status := models.BetStatus(strings.ToUpper(strings.TrimSpace(r.Result)))
		switch status {
		case models.StatusWon, models.StatusLost, models.StatusVoid:
		default:
			continue
		}
		if !known[r.GameID] {
			if c.Logger != nil {
				c.Logger.Debug("settlement for unknown game dropped", zap.String("game_id", r.GameID))
			}
			continue
		}
		out = append(out, Outcome{GameID: r.GameID, Status: status, Reason: strings.TrimSpace(r.Reason)})
	}
	return out, nil
}
