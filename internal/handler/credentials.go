package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"virtus/internal/models"
)

// Rotator swaps the persistence credential at runtime.
type Rotator interface {
	Rotate(dsn string) error
}

type CredentialHandler struct {
	State   StateManager
	Rotator Rotator
	Logger  *zap.Logger
}

func (h *CredentialHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/credentials", h.rotate)
}

type rotateRequest struct {
	DSN string `json:"dsn" binding:"required"`
}

func (h *CredentialHandler) rotate(c *gin.Context) {
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	dsn := strings.TrimSpace(req.DSN)
	if dsn == "" {
		Error(c, http.StatusBadRequest, "empty dsn", nil)
		return
	}

	if err := h.Rotator.Rotate(dsn); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("credential rotation failed", zap.Error(err))
		}
		h.State.LogActivity("SYSTEM", "credential rotation failed", models.SeverityHigh)
		Error(c, http.StatusBadGateway, "rotation failed", nil)
		return
	}

	h.State.LogActivity("SYSTEM", "persistence credential rotated", models.SeverityMedium)
	// A fresh credential may expose tables the old one could not see.
	go h.State.SyncWithCloud(context.Background())
	Ok(c, gin.H{"rotated": true}, nil)
}
