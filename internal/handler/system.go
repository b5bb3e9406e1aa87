package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"virtus/internal/models"
)

// SummaryStore reads the cross-deployment health row.
type SummaryStore interface {
	FetchSummary(ctx context.Context) *models.GlobalSummary
}

type SystemHandler struct {
	State   StateManager
	Summary SummaryStore
}

func (h *SystemHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/system")
	group.GET("", h.getSystem)
	group.POST("/module", h.setModule)
	group.POST("/state", h.setState)
	r.POST("/api/v1/sync", h.sync)
}

func (h *SystemHandler) getSystem(c *gin.Context) {
	payload := gin.H{
		"state":  h.State.SystemState(),
		"module": h.State.Module(),
	}
	if last := h.State.LastSynced(); !last.IsZero() {
		payload["lastSynced"] = last.UTC()
	}
	if h.Summary != nil {
		if summary := h.Summary.FetchSummary(c.Request.Context()); summary != nil {
			payload["summary"] = summary
		}
	}
	Ok(c, payload, nil)
}

type setModuleRequest struct {
	Module string `json:"module" binding:"required"`
}

func (h *SystemHandler) setModule(c *gin.Context) {
	var req setModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	module, ok := models.ParseModule(req.Module)
	if !ok {
		Error(c, http.StatusBadRequest, "unknown module", nil)
		return
	}
	h.State.SetModule(module)
	Ok(c, gin.H{"module": module}, nil)
}

type setStateRequest struct {
	State string `json:"state" binding:"required"`
}

// setState lets the operator move between STANDBY and AUTO_PILOT. The
// transient states belong to running operations and cannot be requested.
func (h *SystemHandler) setState(c *gin.Context) {
	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	target := models.SystemState(strings.ToUpper(strings.TrimSpace(req.State)))
	switch target {
	case models.StateStandby, models.StateAutoPilot:
	default:
		Error(c, http.StatusBadRequest, "state not operator-settable", nil)
		return
	}

	var ok bool
	if target == models.StateAutoPilot {
		ok = h.State.Transition(models.StateStandby, models.StateAutoPilot)
	} else {
		ok = h.State.Transition(models.StateAutoPilot, models.StateStandby)
	}
	if !ok {
		Error(c, http.StatusConflict, "system busy", map[string]any{
			"state": h.State.SystemState(),
		})
		return
	}
	h.State.LogActivity("SYSTEM", "system state set to "+string(target), models.SeverityLow)
	Ok(c, gin.H{"state": target}, nil)
}

func (h *SystemHandler) sync(c *gin.Context) {
	if !h.State.SyncWithCloud(c.Request.Context()) {
		Error(c, http.StatusConflict, "sync already running", nil)
		return
	}
	Ok(c, gin.H{"synced": true}, nil)
}
