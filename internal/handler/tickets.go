package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"virtus/internal/models"
)

// StateManager is the handler-facing surface of the state manager.
type StateManager interface {
	Tickets() []models.Ticket
	Activity() []models.PulseEvent
	Module() models.ModuleType
	SystemState() models.SystemState
	LastSynced() time.Time
	SetModule(models.ModuleType)
	SetSystemState(models.SystemState)
	Transition(from, to models.SystemState) bool
	UpdateTicketStatus(ctx context.Context, gameID string, status models.BetStatus) bool
	AddSignals(ctx context.Context, module models.ModuleType, signals []models.Signal)
	LogActivity(sport, message string, severity models.Severity)
	SyncWithCloud(ctx context.Context) bool
	Subscribe() (<-chan struct{}, func())
}

type TicketHandler struct {
	State StateManager
}

func (h *TicketHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/tickets")
	group.GET("", h.listTickets)
	group.PATCH("/:game_id/status", h.updateStatus)
}

func (h *TicketHandler) listTickets(c *gin.Context) {
	tickets := h.State.Tickets()

	rawModule := strings.TrimSpace(c.Query("module"))
	if rawModule != "" {
		module, ok := models.ParseModule(rawModule)
		if !ok {
			Error(c, http.StatusBadRequest, "unknown module", nil)
			return
		}
		if module.IsScoped() {
			filtered := tickets[:0]
			for _, t := range tickets {
				if t.Module == string(module) {
					filtered = append(filtered, t)
				}
			}
			tickets = filtered
		}
	}

	Ok(c, tickets, map[string]any{"count": len(tickets)})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *TicketHandler) updateStatus(c *gin.Context) {
	gameID := strings.TrimSpace(c.Param("game_id"))
	if gameID == "" {
		Error(c, http.StatusBadRequest, "missing game id", nil)
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	status := models.BetStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		Error(c, http.StatusBadRequest, "invalid status", nil)
		return
	}

	if !h.State.UpdateTicketStatus(c.Request.Context(), gameID, status) {
		Error(c, http.StatusNotFound, "ticket not found", nil)
		return
	}
	Ok(c, gin.H{"id": gameID, "status": status}, nil)
}
