package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/text-stream/internal/api/dto"
	"github.com/cuongbtq/text-stream/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Stream handles GET /api/v1/stream
// Opens a server-sent events stream. The connection ID comes from the
// connection_id query parameter or is generated, and is announced in the
// first "connected" event. Jobs created with that ID in X-Connection-ID are
// streamed here.
func (h *JobHandler) Stream(c *gin.Context) {
	connectionID := c.Query("connection_id")
	if connectionID == "" {
		connectionID = uuid.New().String()
	}

	conn, err := h.hub.Register(connectionID)
	if err != nil {
		if errors.Is(err, notify.ErrConnectionExists) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "connection_id is already streaming"})
			return
		}
		if errors.Is(err, notify.ErrHubClosed) {
			c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "server is shutting down"})
			return
		}
		h.respondError(c, err)
		return
	}
	defer h.hub.Unregister(connectionID)

	h.logger.Info("Stream opened",
		slog.String("connection_id", connectionID),
		slog.String("ip", c.ClientIP()),
	)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(string(notify.EventConnected), notify.Event{
		Type:      notify.EventConnected,
		OwnerID:   connectionID,
		Timestamp: time.Now(),
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Stream closed by client",
				slog.String("connection_id", connectionID),
			)
			return

		case event, ok := <-conn.Events():
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event)
			c.Writer.Flush()

		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"timestamp": time.Now()})
			c.Writer.Flush()
		}
	}
}
