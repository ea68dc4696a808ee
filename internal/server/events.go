package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	streamEventReady     = "ready"
	streamEventHeartbeat = "heartbeat"
)

// handleEventStream relays invalidation events as server-sent events until the client leaves.
func (h *httpHandler) handleEventStream(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.events.Subscribe(ctx)
	defer cleanup()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent(streamEventReady, gin.H{"voter_id": c.GetString(voterIDContextKey)})
	c.Writer.Flush()

	h.logger.Debug("event stream opened", zap.String("voter_id", c.GetString(voterIDContextKey)))
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Kind), event)
			return true
		case tick := <-ticker.C:
			c.SSEvent(streamEventHeartbeat, gin.H{"timestamp": tick.UTC().Unix()})
			return true
		}
	})
}
