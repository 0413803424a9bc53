package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"match_chat/internal/api/handlers"
	"match_chat/internal/middleware"
	"match_chat/internal/service"
	"match_chat/pkg/config"
)

func SetupRoutes(r *gin.Engine, services *service.Services, cfg *config.Config, log zerolog.Logger) {
	// 初始化 handlers
	messageHandler := handlers.NewMessageHandler(services.Relay, services.History)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager, log.With().Str("component", "ws_handler").Logger())
	healthHandler := handlers.NewHealthHandler(services)

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"kind": "not_found", "message": "route not found"},
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由群組
	api := r.Group("/api")

	// 公開路由
	api.GET("/health", healthHandler.Health)

	// 需要驗證的路由；關閉驗證時身分由請求自行宣告
	authorized := api.Group("/")
	if cfg.Auth.Enabled {
		authorized.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))
	}
	{
		messages := authorized.Group("/messages")
		{
			messages.POST("", messageHandler.CreateMessage)
			messages.GET("/:conversationId", messageHandler.GetHistory)
			messages.POST("/:conversationId/read", messageHandler.MarkRead)
		}

		// WebSocket 連接點
		authorized.GET("/ws", wsHandler.HandleWebSocket)
	}
}
