package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/somasaidi/somasaidi/internal/auth"
)

const pingInterval = 25 * time.Second

// streamEvents is the SSE feed of status updates for the authenticated
// user. Browsers cannot set headers on EventSource, so the auth middleware
// also accepts the token as a query parameter. Periodic pings keep proxies
// from closing the idle connection.
func streamEvents(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		events, cancel := cfg.Hub.Subscribe(userID)
		defer cancel()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		cfg.Logger.Info("event stream opened", "user_id", userID, "sessions", cfg.Hub.Sessions(userID))
		c.Stream(func(w io.Writer) bool {
			select {
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(ev.Kind, ev)
				return true
			case <-ping.C:
				c.SSEvent("ping", gin.H{"time": time.Now().UTC().Format(time.RFC3339)})
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
		cfg.Logger.Info("event stream closed", "user_id", userID)
	}
}
