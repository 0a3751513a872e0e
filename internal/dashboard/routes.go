package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the dashboard JSON and event-stream endpoints.
func RegisterRoutes(r gin.IRoutes, c *Composer, streamInterval time.Duration) {
	r.GET("/api/dashboard", handleView(c))
	r.GET("/api/dashboard/stream", handleStream(c, streamInterval))
}

func handleView(c *Composer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		v, err := c.Compose(ctx.Request.Context(), ctx.Query("branch"))
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, v)
	}
}
