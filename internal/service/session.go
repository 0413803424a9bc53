package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"match_chat/internal/apperr"
	"match_chat/internal/metrics"
	"match_chat/internal/models"
)

var (
	// ErrSessionClosed 表示連線已開始關閉，不再接收任何事件
	ErrSessionClosed = errors.New("session closed")
	// ErrBufferFull 表示連線的發送佇列已滿，該連線會被關閉
	ErrBufferFull = errors.New("send buffer full")
)

// Session 代表一條即時連線，與底層傳輸無關
type Session struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	send chan models.Event

	mu       sync.Mutex
	rooms    map[string]struct{}
	closed   bool // 不再投遞事件
	detached bool // 已從所有房間移除
}

func newSession(userID string, buffer int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan models.Event, buffer),
		rooms:       make(map[string]struct{}),
	}
}

// Events 回傳待寫出的事件，連線關閉後通道會被關閉
func (s *Session) Events() <-chan models.Event {
	return s.send
}

// Deliver 將事件放入發送佇列
// 關閉中的連線回傳 ErrSessionClosed；佇列已滿時關閉連線並回傳 ErrBufferFull
func (s *Session) Deliver(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.send <- event:
		return nil
	default:
		s.closeLocked()
		return ErrBufferFull
	}
}

// Rooms 回傳目前加入的對話
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Keys(s.rooms)
}

// Closed 回傳連線是否已開始關閉
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// SessionManager 負責連線的建立、加入／離開對話，以及斷線清理
//
// 鎖的順序固定為 Session.mu -> RoomRegistry.mu；廣播只在放開 registry 鎖之後才取 Session.mu。
type SessionManager struct {
	registry   *RoomRegistry
	sendBuffer int
	log        zerolog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewSessionManager(registry *RoomRegistry, sendBuffer int, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		registry:   registry,
		sendBuffer: sendBuffer,
		log:        log,
		sessions:   make(map[string]*Session),
	}
}

// Connect 為已驗證的使用者建立新連線
func (m *SessionManager) Connect(userID string) *Session {
	session := newSession(userID, m.sendBuffer)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	metrics.ActiveSessions.Inc()
	m.log.Info().Str("session_id", session.ID).Str("user_id", userID).Msg("session connected")
	return session
}

// JoinConversation 將連線加入對話，使用者必須是對話的一方
func (m *SessionManager) JoinConversation(session *Session, conversationID string) (bool, error) {
	if _, _, err := models.ParseConversationID(conversationID); err != nil {
		return false, apperr.Validation("conversation id %q is malformed", conversationID)
	}
	if !models.IsParticipant(conversationID, session.UserID) {
		return false, apperr.Forbidden("user %s is not a participant of %s", session.UserID, conversationID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	// 與 Disconnect 互斥，關閉中的連線不會再留下房間紀錄
	if session.closed || session.detached {
		return false, ErrSessionClosed
	}
	added := m.registry.Join(conversationID, session)
	session.rooms[conversationID] = struct{}{}
	return added, nil
}

// LeaveConversation 將連線移出對話，不在房間內時不做任何事
func (m *SessionManager) LeaveConversation(session *Session, conversationID string) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if _, ok := session.rooms[conversationID]; !ok {
		return
	}
	delete(session.rooms, conversationID)
	m.registry.Leave(conversationID, session)
}

// Disconnect 關閉連線並將它移出所有加入過的對話，可以重複呼叫
// 先標記為關閉再離開房間，因此拆除開始後任何廣播都不會再送達此連線
func (m *SessionManager) Disconnect(session *Session) {
	session.mu.Lock()
	if session.detached {
		session.mu.Unlock()
		return
	}
	session.detached = true
	session.closeLocked()
	rooms := lo.Keys(session.rooms)
	session.rooms = make(map[string]struct{})
	m.registry.LeaveAll(rooms, session)
	session.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, session.ID)
	m.mu.Unlock()

	metrics.ActiveSessions.Dec()
	m.log.Info().
		Str("session_id", session.ID).
		Str("user_id", session.UserID).
		Int("rooms", len(rooms)).
		Msg("session disconnected")
}

// Get 依 ID 取得連線
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count 回傳目前連線數
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown 在服務關閉時中斷所有連線
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	all := lo.Values(m.sessions)
	m.mu.RUnlock()

	for _, s := range all {
		m.Disconnect(s)
	}
}
