package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"match_chat/internal/service"
)

type HealthHandler struct {
	services *service.Services
}

func NewHealthHandler(services *service.Services) *HealthHandler {
	return &HealthHandler{services: services}
}

// Health 回報服務狀態與目前的連線、房間數
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.services.Sessions.Count(),
		"rooms":    h.services.Registry.RoomCount(),
	})
}
