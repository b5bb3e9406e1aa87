package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"virtus/internal/models"
)

// Scanner is the slice of the prediction client scans go through.
type Scanner interface {
	ScanModule(ctx context.Context, module models.ModuleType, rules []string, intel []models.GlobalIntelligence) ([]models.Signal, error)
}

// PromptContext supplies learned rules and intelligence for prompts.
type PromptContext interface {
	FetchRules(ctx context.Context) []string
	FetchIntelligence(ctx context.Context) []models.GlobalIntelligence
}

type ScanHandler struct {
	State   StateManager
	Scanner Scanner
	Context PromptContext
	Logger  *zap.Logger

	// BaseCtx outlives individual requests; the scan keeps running after
	// the HTTP response is sent.
	BaseCtx context.Context
}

func (h *ScanHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/scan", h.scan)
}

type scanRequest struct {
	Module string `json:"module" binding:"required"`
}

// scan kicks off an asynchronous module scan. Only one scan or debate
// runs at a time; a busy system answers 409 without side effects.
func (h *ScanHandler) scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	module, ok := models.ParseModule(req.Module)
	if !ok || !module.IsScoped() {
		Error(c, http.StatusBadRequest, "unknown module", nil)
		return
	}

	if !h.State.Transition(models.StateStandby, models.StateScanning) {
		Error(c, http.StatusConflict, "system busy", map[string]any{
			"state": h.State.SystemState(),
		})
		return
	}

	h.State.SetModule(module)
	h.State.LogActivity(string(module), "scan initiated", models.SeverityLow)

	go h.runScan(module)

	c.JSON(http.StatusAccepted, apiResponse{
		Code:    0,
		Message: "scanning",
		Data:    gin.H{"module": module},
	})
}

func (h *ScanHandler) runScan(module models.ModuleType) {
	ctx := h.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	defer h.State.SetSystemState(models.StateStandby)

	rules := h.Context.FetchRules(ctx)
	intel := h.Context.FetchIntelligence(ctx)

	signals, err := h.Scanner.ScanModule(ctx, module, rules, intel)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("scan failed", zap.String("module", string(module)), zap.Error(err))
		}
		h.State.LogActivity(string(module), "scan failed: "+summarize(err), models.SeverityHigh)
		return
	}
	if len(signals) == 0 {
		h.State.LogActivity(string(module), "scan complete, no qualifying matches", models.SeverityLow)
		return
	}
	h.State.AddSignals(ctx, module, signals)
}

// summarize keeps provider errors out of the operator feed; the full
// chain goes to the log.
func summarize(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i > 0 {
		msg = msg[:i]
	}
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return msg
}
