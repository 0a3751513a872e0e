package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 15 * time.Second

// handleStream pushes a dashboard view on connect and every interval after.
func handleStream(c *Composer, interval time.Duration) gin.HandlerFunc {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return func(ctx *gin.Context) {
		ctx.Header("Content-Type", "text/event-stream")
		ctx.Header("Cache-Control", "no-cache")
		ctx.Header("Connection", "keep-alive")
		ctx.Header("X-Accel-Buffering", "no")

		branch := ctx.Query("branch")
		reqCtx := ctx.Request.Context()

		push := func() {
			v, err := c.Compose(reqCtx, branch)
			if err != nil {
				writeSSE(ctx.Writer, "error", map[string]string{"error": err.Error()})
			} else {
				writeSSE(ctx.Writer, "dashboard", v)
			}
			ctx.Writer.Flush()
		}
		push()

		ticker := time.NewTicker(interval)
		heartbeat := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-reqCtx.Done():
				return
			case <-heartbeat.C:
				writeSSE(ctx.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				ctx.Writer.Flush()
			case <-ticker.C:
				push()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
