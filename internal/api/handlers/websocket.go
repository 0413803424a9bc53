package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"match_chat/internal/apperr"
	"match_chat/internal/middleware"
	"match_chat/internal/models"
	"match_chat/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	wsManager *service.WebSocketManager
	log       zerolog.Logger
}

func NewWebSocketHandler(wsManager *service.WebSocketManager, log zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager: wsManager,
		log:       log,
	}
}

// HandleWebSocket 先確認身分再升級連線，連線存活期間都在此阻塞
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		userID = c.Query("user_id")
	}
	if !models.ValidUserID(userID) {
		respondError(c, apperr.Validation("user_id is required"))
		return
	}

	// 升級 HTTP 連接為 WebSocket 連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失敗時已自行回應
		h.log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	h.wsManager.HandleClient(c.Request.Context(), conn, userID)
}
