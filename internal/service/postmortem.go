// Package service holds the scheduled jobs: the nightly post-mortem that
// settles pending tickets and the auto-pilot sweep that scans modules
// without operator input.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"virtus/internal/models"
	"virtus/internal/predict"
)

// Resolver is the slice of the prediction client the post-mortem needs.
type Resolver interface {
	ResolveOutcomes(ctx context.Context, tickets []models.Ticket) ([]predict.Outcome, error)
}

// MemoryStore is the slice of the gateway the post-mortem writes to.
type MemoryStore interface {
	UpsertMemory(ctx context.Context, m *models.AIMemory) bool
}

// StateView is the slice of the state manager both jobs drive.
type StateView interface {
	Tickets() []models.Ticket
	UpdateTicketStatus(ctx context.Context, gameID string, status models.BetStatus) bool
	LogActivity(sport, message string, severity models.Severity)
}

// winPayout is the net return per stake unit on a winning ticket,
// approximating standard -110 pricing.
var winPayout = decimal.NewFromFloat(0.91)

// settleGrace is how old a pending ticket must be before the post-mortem
// tries to settle it. Younger games may still be in play.
const settleGrace = 4 * time.Hour

type PostMortem struct {
	Resolver Resolver
	Memory   MemoryStore
	State    StateView
	Logger   *zap.Logger

	now func() time.Time
}

func NewPostMortem(resolver Resolver, memory MemoryStore, state StateView, logger *zap.Logger) *PostMortem {
	return &PostMortem{Resolver: resolver, Memory: memory, State: state, Logger: logger, now: time.Now}
}

// Run settles every pending ticket old enough to be final, books the
// profit-and-loss per module with exact decimal arithmetic, and folds the
// result into the pattern memory.
func (p *PostMortem) Run(ctx context.Context) error {
	cutoff := p.now().Add(-settleGrace)
	var pending []models.Ticket
	for _, t := range p.State.Tickets() {
		if t.Status == models.StatusPending && t.CreatedAt.Before(cutoff) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		if p.Logger != nil {
			p.Logger.Info("post-mortem found nothing to settle")
		}
		return nil
	}

	outcomes, err := p.Resolver.ResolveOutcomes(ctx, pending)
	if err != nil {
		p.State.LogActivity("SYSTEM", "post-mortem settlement failed", models.SeverityHigh)
		return fmt.Errorf("resolve outcomes: %w", err)
	}

	byGame := make(map[string]models.Ticket, len(pending))
	for _, t := range pending {
		byGame[t.GameID] = t
	}

	type book struct {
		wins, losses int
		staked       decimal.Decimal
		profit       decimal.Decimal
	}
	books := map[string]*book{}

	settled := 0
	for _, o := range outcomes {
		t, ok := byGame[o.GameID]
		if !ok {
			continue
		}
		if !p.State.UpdateTicketStatus(ctx, o.GameID, o.Status) {
			continue
		}
		settled++
		if o.Status == models.StatusVoid {
			continue
		}
		b := books[t.Module]
		if b == nil {
			b = &book{staked: decimal.Zero, profit: decimal.Zero}
			books[t.Module] = b
		}
		stake := decimal.NewFromInt(int64(t.Stake))
		b.staked = b.staked.Add(stake)
		if o.Status == models.StatusWon {
			b.wins++
			b.profit = b.profit.Add(stake.Mul(winPayout))
		} else {
			b.losses++
			b.profit = b.profit.Sub(stake)
		}
	}

	for module, b := range books {
		total := b.wins + b.losses
		if total == 0 {
			continue
		}
		hitRate := decimal.NewFromInt(int64(b.wins)).
			Div(decimal.NewFromInt(int64(total))).
			Round(4)
		roi := decimal.Zero
		if !b.staked.IsZero() {
			roi = b.profit.Div(b.staked).Round(4)
		}

		mem := &models.AIMemory{
			PatternDescription: fmt.Sprintf("settlement:%s", module),
			Category:           module,
			Sport:              module,
			League:             "ALL",
			ImpactScore:        roi.InexactFloat64(),
		}
		p.Memory.UpsertMemory(ctx, mem)

		p.State.LogActivity(module,
			fmt.Sprintf("post-mortem settled %d tickets: %d won, %d lost, roi %s, hit rate %s",
				total, b.wins, b.losses, roi.String(), hitRate.String()),
			models.SeverityMedium)
		if p.Logger != nil {
			p.Logger.Info("post-mortem module settled",
				zap.String("module", module),
				zap.Int("wins", b.wins),
				zap.Int("losses", b.losses),
				zap.String("profit", b.profit.String()),
				zap.String("roi", roi.String()))
		}
	}

	if p.Logger != nil {
		p.Logger.Info("post-mortem complete",
			zap.Int("pending", len(pending)),
			zap.Int("settled", settled))
	}
	return nil
}
