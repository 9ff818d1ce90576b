package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/embassy-watch/embassy-eye/models"
)

// Health returns a handler for GET /api/v1/health.
func Health(version string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Version: version,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
		})
	}
}
