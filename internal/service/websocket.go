package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
)

type WebSocketOptions struct {
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

// WebSocketManager 將 WebSocket 連線接到 SessionManager 與 RelayService
type WebSocketManager struct {
	sessions *SessionManager
	relay    *RelayService
	opts     WebSocketOptions
	log      zerolog.Logger
}

func NewWebSocketManager(sessions *SessionManager, relay *RelayService, opts WebSocketOptions, log zerolog.Logger) *WebSocketManager {
	return &WebSocketManager{
		sessions: sessions,
		relay:    relay,
		opts:     opts,
		log:      log,
	}
}

// HandleClient 處理一條已驗證身分的連線，直到連線結束才返回
// 不論正常關閉或網路中斷，返回前都會執行斷線清理
func (m *WebSocketManager) HandleClient(ctx context.Context, conn *websocket.Conn, userID string) {
	session := m.sessions.Connect(userID)

	// 確保連線關閉時清理資源
	defer func() {
		m.sessions.Disconnect(session)
		conn.Close()
	}()

	// 啟動讀寫處理
	go m.writePump(conn, session)
	m.readPump(ctx, conn, session)
}

// readPump 持續讀取客戶端事件，依序處理同一連線的請求
func (m *WebSocketManager) readPump(ctx context.Context, conn *websocket.Conn, session *Session) {
	conn.SetReadLimit(m.opts.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(m.opts.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Warn().Err(err).Str("session_id", session.ID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var event models.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			m.reply(session, models.NewErrorEvent("", string(apperr.KindValidation), "invalid JSON event"))
			continue
		}
		m.handleEvent(ctx, session, event)
	}
}

// writePump 將連線佇列中的事件寫出，並定期發送心跳
func (m *WebSocketManager) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(m.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-session.Events():
			conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				m.log.Error().Err(err).Str("session_id", session.ID).Msg("event encoding error")
				w.Close()
				continue
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(m.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *WebSocketManager) handleEvent(ctx context.Context, session *Session, event models.ClientEvent) {
	switch event.Type {
	case models.EventJoin:
		m.handleJoin(session, event)
	case models.EventLeave:
		m.sessions.LeaveConversation(session, event.ConversationID)
		m.reply(session, models.NewRoomEvent(models.EventLeft, event.RequestID, event.ConversationID))
	case models.EventSend:
		m.handleSend(ctx, session, event)
	case models.EventRead:
		m.handleRead(ctx, session, event)
	default:
		m.reply(session, models.NewErrorEvent(event.RequestID, string(apperr.KindValidation), "unknown event type: "+string(event.Type)))
	}
}

// handleJoin 接受對方的使用者 ID 或直接指定對話 ID
func (m *WebSocketManager) handleJoin(session *Session, event models.ClientEvent) {
	conversationID := event.ConversationID
	if event.OtherUserID != "" {
		if !models.ValidUserID(event.OtherUserID) || event.OtherUserID == session.UserID {
			m.replyError(session, event.RequestID, apperr.Validation("otherUserId is invalid"))
			return
		}
		conversationID = models.ConversationID(session.UserID, event.OtherUserID)
	}

	if _, err := m.sessions.JoinConversation(session, conversationID); err != nil {
		m.replyError(session, event.RequestID, err)
		return
	}
	m.reply(session, models.NewRoomEvent(models.EventJoined, event.RequestID, conversationID))
}

// handleSend 的發送者固定為連線的使用者，客戶端無法冒名
func (m *WebSocketManager) handleSend(ctx context.Context, session *Session, event models.ClientEvent) {
	msg, err := m.relay.Send(ctx, SendInput{
		SenderID:       session.UserID,
		ReceiverID:     event.ReceiverID,
		Body:           event.Body,
		ConversationID: event.ConversationID,
		Metadata:       event.Metadata,
	}, session)
	if err != nil {
		m.replyError(session, event.RequestID, err)
		return
	}
	m.reply(session, models.NewAckEvent(event.RequestID, msg))
}

func (m *WebSocketManager) handleRead(ctx context.Context, session *Session, event models.ClientEvent) {
	updated, err := m.relay.MarkRead(ctx, event.ConversationID, session.UserID, session)
	if err != nil {
		m.replyError(session, event.RequestID, err)
		return
	}
	reply := models.NewReadEvent(event.ConversationID, session.UserID, updated)
	reply.RequestID = event.RequestID
	m.reply(session, reply)
}

func (m *WebSocketManager) replyError(session *Session, requestID string, err error) {
	if errors.Is(err, ErrSessionClosed) {
		return
	}
	m.reply(session, models.NewErrorEvent(requestID, string(apperr.KindOf(err)), apperr.MessageOf(err)))
}

func (m *WebSocketManager) reply(session *Session, event models.Event) {
	if err := session.Deliver(event); err != nil {
		m.log.Debug().Err(err).Str("session_id", session.ID).Str("event", string(event.Type)).Msg("reply dropped")
	}
}
