//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../mocks/mock_message_repository.go -package=mocks
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
	"match_chat/internal/storage"
)

// MessageRepository 是以對話為鍵、只能追加的訊息日誌
type MessageRepository interface {
	// Append 持久化訊息並填入 ID 與 CreatedAt，回傳前資料已提交
	Append(ctx context.Context, message *models.Message) error
	// FindByConversation 依建立時間遞增回傳對話的完整紀錄，沒有資料時回傳空切片
	FindByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// MarkRead 將 readerID 收到且未讀的訊息標為已讀，回傳更新筆數
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}

type messageRepository struct {
	db *storage.DB
}

func NewMessageRepository(db *storage.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, message *models.Message) error {
	if message.IdempotencyKey == "" {
		message.IdempotencyKey = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(message)
	if result.Error != nil {
		return apperr.Storage(result.Error, "append message")
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 先前的嘗試已提交，回傳既有的那一筆
	var existing models.Message
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", message.IdempotencyKey).
		First(&existing).Error
	if err != nil {
		return apperr.Storage(err, "append message")
	}
	*message = existing
	return nil
}

// now 回傳截到微秒的 UTC 時間，與 Postgres timestamptz 的精度一致
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Order("id asc").
		Find(&messages).Error
	if err != nil {
		return nil, apperr.Storage(err, "read history")
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, readerID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, apperr.Storage(result.Error, "mark messages read")
	}
	return result.RowsAffected, nil
}
