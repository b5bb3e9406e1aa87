package predict

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"virtus/internal/ai"
	"virtus/internal/config"
	"virtus/internal/models"
	"virtus/internal/retry"
)

type fakeGen struct {
	responses []string
	errs      []error
	calls     int
	lastSys   string
	lastUser  string
}

func (f *fakeGen) Generate(ctx context.Context, system, user string, opts ai.GenOptions) (string, error) {
	f.lastSys = system
	f.lastUser = user
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func testClient(gen ai.Generator) *Client {
	return &Client{
		Gen: gen,
		Scan: config.ScanConfig{
			Timezone: "UTC",
			MinEdge:  -50,
			MaxEdge:  50,
			MinStake: 1,
			MaxStake: 5,
		},
		Retry: retry.Options{
			Attempts:     3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Factor:       2.5,
		},
		Temperature: 0.1,
		MaxTokens:   2048,
		now:         func() time.Time { return time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC) },
	}
}

const scanFixture = `Here you go:
` + "```json" + `
[{"type":"MATCH","homeTeam":"Lakers","awayTeam":"Warriors","leagueName":"NBA","winProbability":61,
"prediction":"Lakers -4.5","edge":9,"stake":3,"summary":"x","recommendedProps":["LeBron o25.5"],"isFireSignal":true}]
` + "```"

func TestScanModuleParsesFencedArray(t *testing.T) {
	gen := &fakeGen{responses: []string{scanFixture}}
	c := testClient(gen)

	signals, err := c.ScanModule(context.Background(), models.ModuleNBA, nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals=%d want=1", len(signals))
	}
	s := signals[0]
	if s.HomeTeam != "Lakers" || s.AwayTeam != "Warriors" {
		t.Fatalf("teams=%q/%q", s.HomeTeam, s.AwayTeam)
	}
	if s.Edge != 9 || s.Stake != 3 || !s.IsFireSignal {
		t.Fatalf("edge=%v stake=%d fire=%v", s.Edge, s.Stake, s.IsFireSignal)
	}
	if s.NeuralAnchor == "" {
		t.Fatal("expected generated anchor")
	}
	if s.CapturedAt.IsZero() {
		t.Fatal("expected capture timestamp")
	}
}

func TestScanModuleNoJSONFailsMalformed(t *testing.T) {
	gen := &fakeGen{responses: []string{"I cannot comply."}}
	c := testClient(gen)

	signals, err := c.ScanModule(context.Background(), models.ModuleNBA, nil, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err=%v want ErrMalformedResponse", err)
	}
	if len(signals) != 0 {
		t.Fatalf("signals=%d want=0", len(signals))
	}
}

func TestScanModuleDropsInvalidRecordsKeepsRest(t *testing.T) {
	gen := &fakeGen{responses: []string{`[
		{"homeTeam":"Lakers","awayTeam":"Warriors","prediction":"Lakers ML","edge":9,"stake":3},
		{"homeTeam":"","awayTeam":"Bulls","prediction":"Bulls ML","edge":5,"stake":2},
		{"homeTeam":"Heat","awayTeam":"Magic","prediction":"Heat ML","edge":5,"stake":9},
		{"homeTeam":"Nets","awayTeam":"Knicks","prediction":"Nets ML","edge":400,"stake":2},
		{"homeTeam":"Suns","awayTeam":"Kings","prediction":"","edge":1,"stake":1}
	]`}}
	c := testClient(gen)

	signals, err := c.ScanModule(context.Background(), models.ModuleNBA, nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("signals=%d want=1 (only the fully valid record survives)", len(signals))
	}
	if signals[0].HomeTeam != "Lakers" {
		t.Fatalf("survivor=%q", signals[0].HomeTeam)
	}
}

func TestScanModuleRetriesRateLimit(t *testing.T) {
	gen := &fakeGen{
		errs:      []error{&retry.RateLimitedError{Err: errors.New("quota")}, nil},
		responses: []string{"", scanFixture},
	}
	c := testClient(gen)

	signals, err := c.ScanModule(context.Background(), models.ModuleNBA, nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("calls=%d want=2", gen.calls)
	}
	if len(signals) != 1 {
		t.Fatalf("signals=%d want=1", len(signals))
	}
}

func TestScanModulePromptEncodesProtocol(t *testing.T) {
	gen := &fakeGen{responses: []string{"[]"}}
	c := testClient(gen)

	if _, err := c.ScanModule(context.Background(), models.ModuleMLB, []string{"avoid back-to-backs"}, []models.GlobalIntelligence{{Sport: "MLB", League: "AL", AvgEfficiency: 0.62, SampleSize: 40}}); err != nil {
		t.Fatalf("err=%v", err)
	}
	for _, want := range []string{
		"TEMPORAL FILTERING PROTOCOL",
		"NOT started",
		"empty array",
		"avoid back-to-backs",
		"MLB/AL",
		"Saturday, 14 March 2026",
	} {
		if !strings.Contains(gen.lastSys, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, gen.lastSys)
		}
	}
}

func TestDebateMatchDiscardsOnErrorField(t *testing.T) {
	gen := &fakeGen{responses: []string{`{"error": "match already started"}`}}
	c := testClient(gen)

	v, err := c.DebateMatch(context.Background(), models.Signal{HomeTeam: "Lakers", AwayTeam: "Warriors"}, models.ModuleNBA)
	if err != nil {
		t.Fatalf("err=%v want=nil (discard is not a failure)", err)
	}
	if v.FinalDecision {
		t.Fatal("expected finalDecision=false")
	}
	if v.Confidence != 0 || v.Entropy != 0 {
		t.Fatalf("confidence=%v entropy=%v want zeroes", v.Confidence, v.Entropy)
	}
	if v.Rationale == "" {
		t.Fatal("expected explicit rationale")
	}
}

func TestDebateMatchArbiterRejectionDiscards(t *testing.T) {
	gen := &fakeGen{responses: []string{`{
		"validator_view":"ok","risk_view":"heavy injuries","value_view":"thin",
		"arbiter_decision":{"finalDecision":false,"confidence":72,"summary":"pass"},
		"entropy":0.4,"blackSwan":0.05}`}}
	c := testClient(gen)

	v, err := c.DebateMatch(context.Background(), models.Signal{HomeTeam: "A", AwayTeam: "B"}, models.ModuleNBA)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if v.FinalDecision || v.Confidence != 0 {
		t.Fatalf("decision=%v confidence=%v want discarded", v.FinalDecision, v.Confidence)
	}
}

func TestDebateMatchAcceptedVerdict(t *testing.T) {
	gen := &fakeGen{responses: []string{`Verdict: {
		"validator_view":"future event confirmed","risk_view":"no key injuries","value_view":"edge 7%",
		"arbiter_decision":{"finalDecision":true,"confidence":81,"summary":"take it"},
		"entropy":0.22,"blackSwan":0.03}`}}
	c := testClient(gen)

	v, err := c.DebateMatch(context.Background(), models.Signal{HomeTeam: "A", AwayTeam: "B"}, models.ModuleNBA)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !v.FinalDecision || v.Confidence != 81 {
		t.Fatalf("decision=%v confidence=%v", v.FinalDecision, v.Confidence)
	}
	if v.Entropy != 0.22 || v.BlackSwan != 0.03 {
		t.Fatalf("entropy=%v blackSwan=%v", v.Entropy, v.BlackSwan)
	}
	if v.ArbiterView != "take it" {
		t.Fatalf("arbiter=%q", v.ArbiterView)
	}
}

func TestDebateMatchMalformedResponse(t *testing.T) {
	gen := &fakeGen{responses: []string{"no json here"}}
	c := testClient(gen)

	if _, err := c.DebateMatch(context.Background(), models.Signal{HomeTeam: "A", AwayTeam: "B"}, models.ModuleNBA); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err=%v want ErrMalformedResponse", err)
	}
}
