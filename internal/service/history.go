package service

import (
	"context"
	"time"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
	"match_chat/internal/repository"
)

// HistoryService 提供對話紀錄的唯讀查詢
// 授權（請求者是否為參與者）由呼叫端負責
type HistoryService struct {
	repo    repository.MessageRepository
	timeout time.Duration
}

func NewHistoryService(repo repository.MessageRepository, timeout time.Duration) *HistoryService {
	return &HistoryService{repo: repo, timeout: timeout}
}

// GetHistory 依建立順序回傳對話的完整紀錄
// 格式錯誤的 ID 回傳 NotFoundError；合法但沒有訊息的對話回傳空切片
func (s *HistoryService) GetHistory(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, _, err := models.ParseConversationID(conversationID); err != nil {
		return nil, apperr.NotFound("conversation %q is not a valid identifier", conversationID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages, err := s.repo.FindByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Storage(err, "read history")
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// Between 回傳兩位使用者之間的對話紀錄
func (s *HistoryService) Between(ctx context.Context, a, b string) ([]models.Message, error) {
	if !models.ValidUserID(a) || !models.ValidUserID(b) || a == b {
		return nil, apperr.NotFound("no conversation between %q and %q", a, b)
	}
	return s.GetHistory(ctx, models.ConversationID(a, b))
}
