package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"virtus/internal/models"
)

// Debater runs the four-agent consensus for one match.
type Debater interface {
	DebateMatch(ctx context.Context, match models.Signal, module models.ModuleType) (models.DebateVerdict, error)
}

type DebateHandler struct {
	State   StateManager
	Debater Debater
	Logger  *zap.Logger
}

func (h *DebateHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/debate", h.debate)
}

type debateRequest struct {
	Module   string `json:"module" binding:"required"`
	HomeTeam string `json:"homeTeam" binding:"required"`
	AwayTeam string `json:"awayTeam" binding:"required"`
}

// debate runs the consensus synchronously and holds the system in
// ANALYSIS_ACTIVE for its duration, which keeps scans locked out.
func (h *DebateHandler) debate(c *gin.Context) {
	var req debateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	module, ok := models.ParseModule(req.Module)
	if !ok || !module.IsScoped() {
		Error(c, http.StatusBadRequest, "unknown module", nil)
		return
	}

	if !h.State.Transition(models.StateStandby, models.StateAnalysisActive) {
		Error(c, http.StatusConflict, "system busy", map[string]any{
			"state": h.State.SystemState(),
		})
		return
	}
	defer h.State.SetSystemState(models.StateStandby)

	match := models.Signal{
		HomeTeam: strings.TrimSpace(req.HomeTeam),
		AwayTeam: strings.TrimSpace(req.AwayTeam),
	}
	verdict, err := h.Debater.DebateMatch(c.Request.Context(), match, module)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("debate failed",
				zap.String("module", string(module)),
				zap.String("home", match.HomeTeam),
				zap.String("away", match.AwayTeam),
				zap.Error(err))
		}
		h.State.LogActivity(string(module), "debate failed: "+summarize(err), models.SeverityHigh)
		Error(c, http.StatusBadGateway, "debate failed", nil)
		return
	}

	severity := models.SeverityMedium
	outcome := "consensus reached"
	if !verdict.FinalDecision {
		severity = models.SeverityLow
		outcome = "match discarded"
	}
	h.State.LogActivity(string(module), "debate complete: "+outcome, severity)

	Ok(c, verdict, nil)
}
