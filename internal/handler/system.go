package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	h.mu.Lock()
	alerts, agencies := len(h.alerts), len(h.agencies)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "healthy", "alerts": alerts, "agencies": agencies})
}
