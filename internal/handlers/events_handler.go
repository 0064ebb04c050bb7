package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 25 * time.Second

// --- GET: /api/events (Server-Sent Events) ---
// Delivery is at-most-once: a client that falls behind loses events.
func (h *Handler) StreamEvents(c *gin.Context) {
	sub := h.Hub.Subscribe()
	defer func() {
		sub.Close()
		if n := sub.Dropped(); n > 0 {
			h.Log.Info("event stream closed with drops", zap.Uint64("dropped", n))
		}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
