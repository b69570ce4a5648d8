package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailfold/mailfold/interfaces"
)

// HealthCheck reports process liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the per-account sync state.
func Status(engine interfaces.SyncEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Status())
	}
}
