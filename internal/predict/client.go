// Package predict builds the prompts that encode the temporal-validity
// protocol, invokes the generative model through the retry wrapper, and
// validates the returned JSON into typed records.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"virtus/internal/ai"
	"virtus/internal/config"
	"virtus/internal/models"
	"virtus/internal/retry"
)

type Client struct {
	Gen    ai.Generator
	Logger *zap.Logger
	Scan   config.ScanConfig
	Retry  retry.Options

	// Temperature and MaxTokens come from the ai section; the scan
	// section only carries validation bounds and the display timezone.
	Temperature float32
	MaxTokens   int

	// now is swappable in tests; zero value means time.Now.
	now func() time.Time
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) localNow() time.Time {
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return c.clock().In(loc)
}

// rawSignal mirrors the schema the scan prompt demands from the model.
type rawSignal struct {
	Type             string   `json:"type"`
	HomeTeam         string   `json:"homeTeam"`
	AwayTeam         string   `json:"awayTeam"`
	LeagueName       string   `json:"leagueName"`
	WinProbability   float64  `json:"winProbability"`
	Prediction       string   `json:"prediction"`
	Edge             float64  `json:"edge"`
	Stake            int      `json:"stake"`
	Summary          string   `json:"summary"`
	RecommendedProps []string `json:"recommendedProps"`
	IsFireSignal     bool     `json:"isFireSignal"`
}

// ScanModule asks the model for today's not-yet-started matches in the
// given module and returns the validated signals. A response without a
// parseable JSON array fails with ErrMalformedResponse and zero signals.
func (c *Client) ScanModule(ctx context.Context, module models.ModuleType, rules []string, intel []models.GlobalIntelligence) ([]models.Signal, error) {
	system := c.scanSystemPrompt(module, rules, intel)
	user := fmt.Sprintf("Scan the %s schedule now and emit the signal array.", module)

	var raw string
	err := retry.Do(ctx, "scan_"+strings.ToLower(string(module)), c.Retry, func(ctx context.Context) error {
		var genErr error
		raw, genErr = c.Gen.Generate(ctx, system, user, ai.GenOptions{
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
		if c.Logger != nil {
			c.Logger.Warn("scan response contained no JSON array", zap.String("module", string(module)))
		}
		return nil, ErrMalformedResponse
	}

	var records []rawSignal
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("scan response JSON did not match schema", zap.String("module", string(module)), zap.Error(err))
		}
		return nil, ErrMalformedResponse
	}

	capturedAt := c.clock().UTC()
	signals := make([]models.Signal, 0, len(records))
	for _, r := range records {
		if reason := c.validate(r); reason != "" {
			if c.Logger != nil {
				c.Logger.Debug("dropping malformed signal",
					zap.String("module", string(module)),
					zap.String("reason", reason),
					zap.String("home", r.HomeTeam),
					zap.String("away", r.AwayTeam),
				)
			}
			continue
		}
		signals = append(signals, models.Signal{
			HomeTeam:         strings.TrimSpace(r.HomeTeam),
			AwayTeam:         strings.TrimSpace(r.AwayTeam),
			LeagueName:       strings.TrimSpace(r.LeagueName),
			WinProbability:   r.WinProbability,
			Prediction:       strings.TrimSpace(r.Prediction),
			Edge:             r.Edge,
			Stake:            r.Stake,
			Summary:          r.Summary,
			RecommendedProps: r.RecommendedProps,
			IsFireSignal:     r.IsFireSignal,
			NeuralAnchor:     "virtus-" + uuid.NewString()[:8],
			CapturedAt:       capturedAt,
		})
	}
	return signals, nil
}

// validate returns a non-empty reason when the record must be dropped.
// Malformed records are discarded, never clamped; the rest of the batch
// survives.
func (c *Client) validate(r rawSignal) string {
	if strings.TrimSpace(r.HomeTeam) == "" || strings.TrimSpace(r.AwayTeam) == "" {
		return "missing team name"
	}
	if strings.TrimSpace(r.Prediction) == "" {
		return "missing prediction"
	}
	if r.Stake < c.Scan.MinStake || r.Stake > c.Scan.MaxStake {
		return "stake out of range"
	}
	if r.Edge < c.Scan.MinEdge || r.Edge > c.Scan.MaxEdge {
		return "edge out of range"
	}
	return ""
}

func (c *Client) scanSystemPrompt(module models.ModuleType, rules []string, intel []models.GlobalIntelligence) string {
	now := c.localNow()
	stamp := now.Format("Monday, 2 January 2006 at 15:04 (MST)")

	var b strings.Builder
	b.WriteString("IDENTITY: VIRTUS ULTRA-PRECISION SIGNAL ENGINE.\n")
	fmt.Fprintf(&b, "CURRENT REAL TIMESTAMP: %s.\n\n", stamp)
	b.WriteString("TEMPORAL FILTERING PROTOCOL (STRICT):\n")
	fmt.Fprintf(&b, "1. Only consider %s matches scheduled for TODAY that have NOT started yet (start time after %s).\n", module, stamp)
	b.WriteString("2. If a match already started or finished, it does not exist. If nothing qualifies, return an empty array [].\n")
	b.WriteString("3. Output strict JSON only.\n\n")

	if len(rules) > 0 {
		b.WriteString("LEARNED RULES:\n")
		for _, r := range rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	if len(intel) > 0 {
		b.WriteString("GLOBAL INTELLIGENCE:\n")
		for _, gi := range intel {
			fmt.Fprintf(&b, "- %s/%s efficiency=%.2f (n=%d)\n", gi.Sport, gi.League, gi.AvgEfficiency, gi.SampleSize)
		}
		b.WriteString("\n")
	}

	b.WriteString(`JSON SCHEMA:
[{
  "type": "MATCH",
  "homeTeam": "string",
  "awayTeam": "string",
  "leagueName": "string",
  "winProbability": number,
  "prediction": "string",
  "edge": number,
  "stake": number,
  "summary": "string",
  "recommendedProps": ["string"],
  "isFireSignal": boolean
}]`)
	return b.String()
}

// rawVerdict mirrors the debate prompt's response schema. A populated
// Error field is how the model reports temporal invalidity.
type rawVerdict struct {
	Error           string `json:"error"`
	ValidatorView   string `json:"validator_view"`
	RiskView        string `json:"risk_view"`
	ValueView       string `json:"value_view"`
	ArbiterDecision *struct {
		FinalDecision bool    `json:"finalDecision"`
		Confidence    float64 `json:"confidence"`
		Summary       string  `json:"summary"`
	} `json:"arbiter_decision"`
	Entropy   float64 `json:"entropy"`
	BlackSwan float64 `json:"blackSwan"`
}

// DebateMatch runs the single orchestrated four-agent debate for a match.
// Temporal invalidity or an arbiter rejection yields the canonical
// discarded verdict with a nil error; those are expected outcomes.
func (c *Client) DebateMatch(ctx context.Context, match models.Signal, module models.ModuleType) (models.DebateVerdict, error) {
	user := fmt.Sprintf(`NEURAL ORCHESTRATOR: run an internal debate for %s vs %s (%s).

AGENT INSTRUCTIONS:
- VALIDATOR: confirm form and that the event is in the future.
- RISK: identify injuries, market traps and downside (use web search).
- VALUE: compute the mathematical value and true probability.
- ARBITER: decide the final consensus.

RETURN STRICT JSON:
{
  "validator_view": "string",
  "risk_view": "string",
  "value_view": "string",
  "arbiter_decision": {
    "finalDecision": boolean,
    "confidence": number,
    "summary": "string"
  },
  "entropy": number (0-1),
  "blackSwan": number (0-0.2)
}
If the match already started or cannot be verified for today, return {"error": "reason"}.`,
		match.HomeTeam, match.AwayTeam, module)

	var raw string
	err := retry.Do(ctx, "debate", c.Retry, func(ctx context.Context) error {
		var genErr error
		raw, genErr = c.Gen.Generate(ctx, c.debateSystemPrompt(), user, ai.GenOptions{
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			WebSearch:   true,
			JSONOnly:    true,
		})
		return genErr
	})
	if err != nil {
		return models.DebateVerdict{}, err
	}

	body, ok := extractJSONObject(raw)
	if !ok {
		return models.DebateVerdict{}, ErrMalformedResponse
	}
	var v rawVerdict
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return models.DebateVerdict{}, ErrMalformedResponse
	}

	anchor := "virtus-" + uuid.NewString()[:8]
	if v.Error != "" || v.ArbiterDecision == nil || !v.ArbiterDecision.FinalDecision {
		rationale := "Arbiter rejected the consensus."
		if v.Error != "" {
			rationale = "Discarded: " + v.Error
		}
		return models.DebateVerdict{
			ValidatorView: defaultView(v.ValidatorView, "Validation completed."),
			RiskView:      defaultView(v.RiskView, "Risks assessed."),
			ValueView:     defaultView(v.ValueView, "Value computed."),
			ArbiterView:   rationale,
			FinalDecision: false,
			Confidence:    0,
			Entropy:       0,
			BlackSwan:     0,
			NeuralAnchor:  anchor,
			Rationale:     rationale,
		}, nil
	}

	return models.DebateVerdict{
		ValidatorView: defaultView(v.ValidatorView, "Validation completed."),
		RiskView:      defaultView(v.RiskView, "Risks assessed."),
		ValueView:     defaultView(v.ValueView, "Value computed."),
		ArbiterView:   defaultView(v.ArbiterDecision.Summary, "Consensus reached."),
		FinalDecision: true,
		Confidence:    v.ArbiterDecision.Confidence,
		Entropy:       v.Entropy,
		BlackSwan:     v.BlackSwan,
		NeuralAnchor:  anchor,
		Rationale:     defaultView(v.ArbiterDecision.Summary, "Consensus reached."),
	}, nil
}

func (c *Client) debateSystemPrompt() string {
	now := c.localNow()
	return fmt.Sprintf("You orchestrate a four-agent consensus debate for sports predictions. Current real timestamp: %s. Respond with strict JSON only.",
		now.Format("Monday, 2 January 2006 at 15:04 (MST)"))
}

func defaultView(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
