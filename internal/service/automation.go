package service

import (
	"context"

	"go.uber.org/zap"

	"virtus/internal/models"
)

// Scanner is the slice of the prediction client the sweep needs.
type Scanner interface {
	ScanModule(ctx context.Context, module models.ModuleType, rules []string, intel []models.GlobalIntelligence) ([]models.Signal, error)
}

// PromptContext supplies the learned context every scan is primed with.
type PromptContext interface {
	FetchRules(ctx context.Context) []string
	FetchIntelligence(ctx context.Context) []models.GlobalIntelligence
}

// AutoState is the slice of the state manager the sweep drives.
type AutoState interface {
	SystemState() models.SystemState
	AddSignals(ctx context.Context, module models.ModuleType, signals []models.Signal)
	LogActivity(sport, message string, severity models.Severity)
}

// Automation sweeps the configured modules on a schedule while the
// system is in auto-pilot. In any other mode the sweep is a no-op, so an
// operator-initiated scan or debate never races with it.
type Automation struct {
	Scanner Scanner
	Context PromptContext
	State   AutoState
	Logger  *zap.Logger
	Modules []models.ModuleType
}

func (a *Automation) Run(ctx context.Context) {
	if a.State.SystemState() != models.StateAutoPilot {
		return
	}

	rules := a.Context.FetchRules(ctx)
	intel := a.Context.FetchIntelligence(ctx)

	for _, module := range a.Modules {
		if ctx.Err() != nil {
			return
		}
		if a.State.SystemState() != models.StateAutoPilot {
			return
		}
		signals, err := a.Scanner.ScanModule(ctx, module, rules, intel)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("auto-pilot scan failed",
					zap.String("module", string(module)), zap.Error(err))
			}
			a.State.LogActivity(string(module), "auto-pilot scan failed", models.SeverityHigh)
			continue
		}
		if len(signals) == 0 {
			continue
		}
		a.State.AddSignals(ctx, module, signals)
	}
}
