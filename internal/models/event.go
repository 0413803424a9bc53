package models

import "time"

// EventType 是 WebSocket 事件種類
type EventType string

// 客戶端送往伺服器
const (
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
	EventSend  EventType = "send"
	EventRead  EventType = "read"
)

// 伺服器送往客戶端
const (
	EventJoined    EventType = "joined"
	EventLeft      EventType = "left"
	EventDelivered EventType = "delivered"
	EventAck       EventType = "ack"
	EventReadDone  EventType = "read"
	EventError     EventType = "error"
)

// ClientEvent 是客戶端送來的事件，依 Type 使用不同欄位
type ClientEvent struct {
	Type           EventType      `json:"type"`
	RequestID      string         `json:"requestId,omitempty"`
	OtherUserID    string         `json:"otherUserId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	ReceiverID     string         `json:"receiverId,omitempty"`
	Body           string         `json:"body,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ErrorBody 是錯誤事件與 REST 錯誤回應共用的結構
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Event 是伺服器送給某個連線的事件
type Event struct {
	Type           EventType  `json:"type"`
	RequestID      string     `json:"requestId,omitempty"`
	ConversationID string     `json:"conversationId,omitempty"`
	Message        *Message   `json:"message,omitempty"`
	ReaderID       string     `json:"readerId,omitempty"`
	Updated        int64      `json:"updated,omitempty"`
	Error          *ErrorBody `json:"error,omitempty"`
	Ts             int64      `json:"ts"`
}

// NewDeliveredEvent 建立廣播給房間成員的新訊息事件
func NewDeliveredEvent(msg *Message) Event {
	return Event{
		Type:           EventDelivered,
		ConversationID: msg.ConversationID,
		Message:        msg,
		Ts:             time.Now().UnixMilli(),
	}
}

// NewAckEvent 建立只回給發送連線的確認事件
func NewAckEvent(requestID string, msg *Message) Event {
	return Event{
		Type:           EventAck,
		RequestID:      requestID,
		ConversationID: msg.ConversationID,
		Message:        msg,
		Ts:             time.Now().UnixMilli(),
	}
}

// NewErrorEvent 建立只回給發送連線的錯誤事件
func NewErrorEvent(requestID, kind, message string) Event {
	return Event{
		Type:      EventError,
		RequestID: requestID,
		Error:     &ErrorBody{Kind: kind, Message: message},
		Ts:        time.Now().UnixMilli(),
	}
}

// NewRoomEvent 建立 joined / left 之類只帶對話 ID 的事件
func NewRoomEvent(t EventType, requestID, conversationID string) Event {
	return Event{
		Type:           t,
		RequestID:      requestID,
		ConversationID: conversationID,
		Ts:             time.Now().UnixMilli(),
	}
}

// NewReadEvent 通知房間某位參與者已讀
func NewReadEvent(conversationID, readerID string, updated int64) Event {
	return Event{
		Type:           EventReadDone,
		ConversationID: conversationID,
		ReaderID:       readerID,
		Updated:        updated,
		Ts:             time.Now().UnixMilli(),
	}
}
