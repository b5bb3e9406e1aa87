package predict

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"virtus/internal/models"
)

func pendingTickets() []models.Ticket {
	return []models.Ticket{
		{GameID: "nba-lakers-celtics", HomeTeam: "Lakers", AwayTeam: "Celtics", Prediction: "Lakers ML", CreatedAt: time.Date(2026, 3, 13, 19, 0, 0, 0, time.UTC)},
		{GameID: "nba-heat-knicks", HomeTeam: "Heat", AwayTeam: "Knicks", Prediction: "Knicks +3.5", CreatedAt: time.Date(2026, 3, 13, 20, 0, 0, 0, time.UTC)},
	}
}

func TestResolveOutcomes(t *testing.T) {
	gen := &fakeGen{responses: []string{`[
		{"game_id":"nba-lakers-celtics","result":"won","reason":"Lakers 112-98"},
		{"game_id":"nba-heat-knicks","result":"VOID","reason":"postponed"},
		{"game_id":"nba-unknown-game","result":"WON","reason":"not ours"},
		{"game_id":"nba-lakers-celtics","result":"PUSHED","reason":"bad status"}
	]`}}
	c := testClient(gen)

	outcomes, err := c.ResolveOutcomes(context.Background(), pendingTickets())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes=%d want=2", len(outcomes))
	}
	if outcomes[0].GameID != "nba-lakers-celtics" || outcomes[0].Status != models.StatusWon {
		t.Fatalf("first outcome = %+v", outcomes[0])
	}
	if outcomes[1].Status != models.StatusVoid {
		t.Fatalf("second outcome = %+v", outcomes[1])
	}

	if !strings.Contains(gen.lastUser, "game_id=nba-lakers-celtics") {
		t.Fatal("prompt missing the game ids to settle")
	}
	if !strings.Contains(gen.lastSys, "settlement auditor") {
		t.Fatal("system prompt missing the auditor role")
	}
}

func TestResolveOutcomesEmptyInput(t *testing.T) {
	gen := &fakeGen{}
	c := testClient(gen)
	outcomes, err := c.ResolveOutcomes(context.Background(), nil)
	if err != nil || outcomes != nil {
		t.Fatalf("outcomes=%v err=%v", outcomes, err)
	}
	if gen.calls != 0 {
		t.Fatal("generator should not be called with no tickets")
	}
}

func TestResolveOutcomesMalformed(t *testing.T) {
	gen := &fakeGen{responses: []string{"no json here"}}
	c := testClient(gen)
	if _, err := c.ResolveOutcomes(context.Background(), pendingTickets()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err=%v want ErrMalformedResponse", err)
	}
}
