package handler

import (
	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	State StateManager
}

func (h *ActivityHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/activity", h.listActivity)
}

func (h *ActivityHandler) listActivity(c *gin.Context) {
	events := h.State.Activity()
	limit := intQuery(c, "limit", len(events))
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	Ok(c, events, map[string]any{"count": len(events)})
}
