package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"match_chat/internal/apperr"
	"match_chat/internal/middleware"
	"match_chat/internal/models"
	"match_chat/internal/service"
)

// MessageHandler 處理訊息的 REST 請求
type MessageHandler struct {
	relay   *service.RelayService
	history *service.HistoryService
}

func NewMessageHandler(relay *service.RelayService, history *service.HistoryService) *MessageHandler {
	return &MessageHandler{relay: relay, history: history}
}

// CreateMessage 送出一則訊息；啟用驗證時 senderId 必須是登入的使用者
// 缺少 senderId 時交由輸入驗證回報
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var input service.SendInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, apperr.Validation("invalid request body"))
		return
	}

	if userID, ok := middleware.UserIDFromContext(c); ok && input.SenderID != "" && userID != input.SenderID {
		respondError(c, apperr.Forbidden("senderId does not match the authenticated user"))
		return
	}

	msg, err := h.relay.Send(c.Request.Context(), input, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetHistory 回傳對話紀錄，沒有訊息時回傳空陣列
func (h *MessageHandler) GetHistory(c *gin.Context) {
	conversationID := c.Param("conversationId")

	if userID, ok := middleware.UserIDFromContext(c); ok {
		if _, _, err := models.ParseConversationID(conversationID); err == nil && !models.IsParticipant(conversationID, userID) {
			respondError(c, apperr.Forbidden("user is not a participant of this conversation"))
			return
		}
	}

	messages, err := h.history.GetHistory(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// MarkRead 將對話中寄給讀者的未讀訊息標記為已讀
// 未啟用驗證時讀者由 user_id 查詢參數指定
func (h *MessageHandler) MarkRead(c *gin.Context) {
	readerID, ok := middleware.UserIDFromContext(c)
	if !ok {
		readerID = c.Query("user_id")
	}
	if !models.ValidUserID(readerID) {
		respondError(c, apperr.Validation("user_id is required"))
		return
	}

	updated, err := h.relay.MarkRead(c.Request.Context(), c.Param("conversationId"), readerID, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
