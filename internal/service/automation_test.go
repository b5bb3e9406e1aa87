package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"virtus/internal/models"
)

type stubScanner struct {
	signals map[models.ModuleType][]models.Signal
	errs    map[models.ModuleType]error
	scanned []models.ModuleType
}

func (s *stubScanner) ScanModule(ctx context.Context, module models.ModuleType, rules []string, intel []models.GlobalIntelligence) ([]models.Signal, error) {
	s.scanned = append(s.scanned, module)
	if err := s.errs[module]; err != nil {
		return nil, err
	}
	return s.signals[module], nil
}

type stubContext struct{}

func (stubContext) FetchRules(ctx context.Context) []string { return []string{"rule"} }
func (stubContext) FetchIntelligence(ctx context.Context) []models.GlobalIntelligence {
	return nil
}

func TestAutomationSkipsOutsideAutoPilot(t *testing.T) {
	scanner := &stubScanner{}
	auto := &Automation{
		Scanner: scanner,
		Context: stubContext{},
		State:   &stubState{mode: models.StateStandby},
		Logger:  zap.NewNop(),
		Modules: []models.ModuleType{models.ModuleNBA},
	}
	auto.Run(context.Background())
	if len(scanner.scanned) != 0 {
		t.Fatal("sweep must not scan outside auto-pilot")
	}
}

func TestAutomationSweepsModules(t *testing.T) {
	scanner := &stubScanner{
		signals: map[models.ModuleType][]models.Signal{
			models.ModuleNBA: {{HomeTeam: "Lakers", AwayTeam: "Celtics", Prediction: "Lakers ML", Stake: 2}},
		},
		errs: map[models.ModuleType]error{
			models.ModuleMLB: errors.New("provider down"),
		},
	}
	state := &stubState{mode: models.StateAutoPilot}
	auto := &Automation{
		Scanner: scanner,
		Context: stubContext{},
		State:   state,
		Logger:  zap.NewNop(),
		Modules: []models.ModuleType{models.ModuleNBA, models.ModuleMLB, models.ModuleTennis},
	}

	auto.Run(context.Background())

	if len(scanner.scanned) != 3 {
		t.Fatalf("scanned %v, want all three modules", scanner.scanned)
	}
	if len(state.added) != 1 || state.added[0].HomeTeam != "Lakers" {
		t.Fatalf("added signals = %v", state.added)
	}
	// MLB failure is logged, not fatal to the sweep.
	if len(state.events) != 1 {
		t.Fatalf("events = %v, want one failure event", state.events)
	}
}

func TestAutomationStopsWhenModeChanges(t *testing.T) {
	state := &stubState{mode: models.StateAutoPilot}
	scanner := &flipScanner{state: state}
	auto := &Automation{
		Scanner: scanner,
		Context: stubContext{},
		State:   state,
		Logger:  zap.NewNop(),
		Modules: []models.ModuleType{models.ModuleNBA, models.ModuleMLB},
	}

	auto.Run(context.Background())

	if scanner.calls != 1 {
		t.Fatalf("calls = %d, want sweep to stop after mode change", scanner.calls)
	}
}

// flipScanner drops the system out of auto-pilot during the first scan.
type flipScanner struct {
	state *stubState
	calls int
}

func (f *flipScanner) ScanModule(ctx context.Context, module models.ModuleType, rules []string, intel []models.GlobalIntelligence) ([]models.Signal, error) {
	f.calls++
	f.state.mode = models.StateStandby
	return nil, nil
}
