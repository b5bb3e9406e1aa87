package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"virtus/internal/models"
)

const streamWriteTimeout = 10 * time.Second

// streamFrame is the push payload sent on every state change.
type streamFrame struct {
	State    models.SystemState  `json:"state"`
	Module   models.ModuleType   `json:"module"`
	Tickets  []models.Ticket     `json:"tickets"`
	Activity []models.PulseEvent `json:"activity"`
}

type StreamHandler struct {
	State  StateManager
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stream", h.stream)
}

// stream upgrades to a websocket and pushes a full dashboard frame on
// connect and after every state change until the peer goes away.
func (h *StreamHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ctx := c.Request.Context()
	updates, cancel := h.State.Subscribe()
	defer cancel()

	// Reads are discarded; the socket is push-only, but the read loop
	// surfaces peer closure.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := h.writeFrame(ctx, conn); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-updates:
			if err := h.writeFrame(ctx, conn); err != nil {
				return
			}
		}
	}
}

func (h *StreamHandler) writeFrame(ctx context.Context, conn *websocket.Conn) error {
	frame := streamFrame{
		State:    h.State.SystemState(),
		Module:   h.State.Module(),
		Tickets:  h.State.Tickets(),
		Activity: h.State.Activity(),
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
