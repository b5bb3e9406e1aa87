package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"virtus/internal/models"
	"virtus/internal/predict"
)

type stubResolver struct {
	outcomes []predict.Outcome
	err      error
	gotGames []string
}

func (s *stubResolver) ResolveOutcomes(ctx context.Context, tickets []models.Ticket) ([]predict.Outcome, error) {
	for _, t := range tickets {
		s.gotGames = append(s.gotGames, t.GameID)
	}
	return s.outcomes, s.err
}

type stubMemory struct {
	rows []models.AIMemory
}

func (s *stubMemory) UpsertMemory(ctx context.Context, m *models.AIMemory) bool {
	s.rows = append(s.rows, *m)
	return true
}

type stubState struct {
	tickets  []models.Ticket
	statuses map[string]models.BetStatus
	events   []string
	scans    int
	mode     models.SystemState
	added    []models.Signal
}

func (s *stubState) Tickets() []models.Ticket { return s.tickets }

func (s *stubState) UpdateTicketStatus(ctx context.Context, gameID string, status models.BetStatus) bool {
	for _, t := range s.tickets {
		if t.GameID == gameID {
			if s.statuses == nil {
				s.statuses = map[string]models.BetStatus{}
			}
			s.statuses[gameID] = status
			return true
		}
	}
	return false
}

func (s *stubState) LogActivity(sport, message string, severity models.Severity) {
	s.events = append(s.events, message)
}

func (s *stubState) SystemState() models.SystemState { return s.mode }

func (s *stubState) AddSignals(ctx context.Context, module models.ModuleType, signals []models.Signal) {
	s.added = append(s.added, signals...)
}

func oldTicket(gameID, module string, stake int) models.Ticket {
	return models.Ticket{
		GameID:     gameID,
		Module:     module,
		HomeTeam:   "Home",
		AwayTeam:   "Away",
		Prediction: "home ml",
		Stake:      stake,
		Status:     models.StatusPending,
		CreatedAt:  time.Now().Add(-24 * time.Hour),
	}
}

func TestPostMortemSettlesAndBooks(t *testing.T) {
	state := &stubState{tickets: []models.Ticket{
		oldTicket("nba-a-b", "NBA", 2),
		oldTicket("nba-c-d", "NBA", 3),
		oldTicket("nba-e-f", "NBA", 1),
	}}
	resolver := &stubResolver{outcomes: []predict.Outcome{
		{GameID: "nba-a-b", Status: models.StatusWon},
		{GameID: "nba-c-d", Status: models.StatusLost},
		{GameID: "nba-e-f", Status: models.StatusVoid},
	}}
	memory := &stubMemory{}
	pm := NewPostMortem(resolver, memory, state, zap.NewNop())

	if err := pm.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.statuses["nba-a-b"] != models.StatusWon {
		t.Fatalf("nba-a-b status = %s, want WON", state.statuses["nba-a-b"])
	}
	if state.statuses["nba-e-f"] != models.StatusVoid {
		t.Fatalf("nba-e-f status = %s, want VOID", state.statuses["nba-e-f"])
	}

	if len(memory.rows) != 1 {
		t.Fatalf("memory rows = %d, want 1", len(memory.rows))
	}
	row := memory.rows[0]
	if row.PatternDescription != "settlement:NBA" {
		t.Fatalf("pattern = %q", row.PatternDescription)
	}
	// Profit 2*0.91 - 3 = -1.18 on 5 staked; roi = -0.236.
	if row.ImpactScore > -0.23 || row.ImpactScore < -0.24 {
		t.Fatalf("roi = %v, want -0.236", row.ImpactScore)
	}

	found := false
	for _, msg := range state.events {
		if strings.Contains(msg, "1 won, 1 lost") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no settlement activity event: %v", state.events)
	}
}

func TestPostMortemSkipsFreshAndSettledTickets(t *testing.T) {
	fresh := oldTicket("nba-fresh", "NBA", 2)
	fresh.CreatedAt = time.Now().Add(-time.Hour)
	won := oldTicket("nba-done", "NBA", 2)
	won.Status = models.StatusWon

	state := &stubState{tickets: []models.Ticket{fresh, won, oldTicket("nba-a-b", "NBA", 2)}}
	resolver := &stubResolver{}
	pm := NewPostMortem(resolver, &stubMemory{}, state, zap.NewNop())

	if err := pm.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resolver.gotGames) != 1 || resolver.gotGames[0] != "nba-a-b" {
		t.Fatalf("resolver saw %v, want only nba-a-b", resolver.gotGames)
	}
}

func TestPostMortemResolverFailure(t *testing.T) {
	state := &stubState{tickets: []models.Ticket{oldTicket("nba-a-b", "NBA", 2)}}
	resolver := &stubResolver{err: errors.New("provider down")}
	pm := NewPostMortem(resolver, &stubMemory{}, state, zap.NewNop())

	if err := pm.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed resolution")
	}
	if len(state.events) == 0 {
		t.Fatal("expected failure activity event")
	}
}

func TestPostMortemNothingPending(t *testing.T) {
	resolver := &stubResolver{}
	pm := NewPostMortem(resolver, &stubMemory{}, &stubState{}, zap.NewNop())
	if err := pm.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resolver.gotGames) != 0 {
		t.Fatal("resolver should not be called with nothing pending")
	}
}
