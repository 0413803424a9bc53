package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message 是一則已持久化的聊天訊息，同時作為 REST 回應與 WebSocket 事件的內容
// 建立後只有 Read 會由 false 變為 true
type Message struct {
	ID             uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string            `gorm:"type:varchar(140);not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       string            `gorm:"type:varchar(64);not null" json:"senderId"`
	ReceiverID     string            `gorm:"type:varchar(64);not null;index" json:"receiverId"`
	Body           string            `gorm:"column:content;type:text;not null" json:"body"`
	Read           bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt      time.Time         `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
	Metadata       datatypes.JSONMap `json:"metadata"`
	// IdempotencyKey 讓重試的寫入只會留下一筆
	IdempotencyKey string `gorm:"type:varchar(36);not null;uniqueIndex" json:"-"`
}

// TableName 固定資料表名稱為 messages
func (Message) TableName() string {
	return "messages"
}

// NewMessage 建立尚未持久化的訊息，ID 與 CreatedAt 由訊息儲存指定
func NewMessage(senderID, receiverID, body string, metadata map[string]any) *Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Message{
		ConversationID: ConversationID(senderID, receiverID),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Body:           body,
		Read:           false,
		Metadata:       datatypes.JSONMap(metadata),
		IdempotencyKey: uuid.NewString(),
	}
}
