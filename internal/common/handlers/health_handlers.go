package handlers

import (
	"net/http"

	"github.com/architect/peer-matching/internal/common/health"
	"github.com/gin-gonic/gin"
)

// HealthHandler serves the health check endpoints.
type HealthHandler struct {
	checker *health.HealthChecker
}

func NewHealthHandler(checker *health.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health returns the full component health report.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.Check())
}

// Readiness reports whether the service can take traffic.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.checker.IsReady() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}

// Liveness reports whether the process is running.
func (h *HealthHandler) Liveness(c *gin.Context) {
	if h.checker.IsAlive() {
		c.JSON(http.StatusOK, gin.H{"alive": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"alive": false})
}

// Metrics returns current process metrics.
func (h *HealthHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.GetMetrics())
}
