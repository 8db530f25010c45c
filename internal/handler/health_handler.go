package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/response"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/config"
)

// HealthHandler serves liveness and version info.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	data := gin.H{"status": "up"}
	if config.GlobalConfig != nil {
		data["name"] = config.GlobalConfig.App.Name
		data["version"] = config.GlobalConfig.App.Version
	}
	c.JSON(http.StatusOK, response.Success(data))
}
