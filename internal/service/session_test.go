package service

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"match_chat/internal/apperr"
	"match_chat/internal/models"
)

func newTestSessions(buffer int) (*SessionManager, *RoomRegistry) {
	registry := NewRoomRegistry()
	return NewSessionManager(registry, buffer, zerolog.Nop()), registry
}

func TestSessionManager_ConnectAndGet(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestSessions(4)

	s := manager.Connect("u1")

	req.NotEmpty(s.ID)
	req.Equal("u1", s.UserID)
	got, ok := manager.Get(s.ID)
	req.True(ok)
	req.Same(s, got)
	req.Equal(1, manager.Count())
}

func TestSessionManager_DisconnectLeavesAllRooms(t *testing.T) {
	req := require.New(t)
	manager, registry := newTestSessions(4)
	s := manager.Connect("u1")
	other := manager.Connect("u2")

	// Given a session joined to two conversations
	_, err := manager.JoinConversation(s, "u1_u2")
	req.NoError(err)
	_, err = manager.JoinConversation(s, "u1_u3")
	req.NoError(err)
	_, err = manager.JoinConversation(other, "u1_u2")
	req.NoError(err)
	req.ElementsMatch([]string{"u1_u2", "u1_u3"}, s.Rooms())

	// When it disconnects
	manager.Disconnect(s)

	// Then it is gone from every room and receives nothing further
	req.Equal([]*Session{other}, registry.MembersOf("u1_u2"))
	req.Empty(registry.MembersOf("u1_u3"))
	req.Empty(s.Rooms())
	req.True(s.Closed())
	req.ErrorIs(s.Deliver(models.Event{Type: models.EventDelivered}), ErrSessionClosed)
	_, ok := manager.Get(s.ID)
	req.False(ok)

	// The events channel is closed for the writer
	_, open := <-s.Events()
	req.False(open)

	// Disconnect is idempotent
	manager.Disconnect(s)
	req.Equal(1, manager.Count())
}

func TestSessionManager_JoinAfterDisconnect(t *testing.T) {
	req := require.New(t)
	manager, registry := newTestSessions(4)
	s := manager.Connect("u1")
	manager.Disconnect(s)

	_, err := manager.JoinConversation(s, "u1_u2")

	req.ErrorIs(err, ErrSessionClosed)
	req.Zero(registry.RoomCount())
}

func TestSessionManager_JoinValidation(t *testing.T) {
	req := require.New(t)
	manager, _ := newTestSessions(4)
	s := manager.Connect("u1")

	_, err := manager.JoinConversation(s, "not-a-conversation")
	req.ErrorIs(err, apperr.ErrValidation)

	_, err = manager.JoinConversation(s, "u2_u3")
	req.ErrorIs(err, apperr.ErrForbidden)

	added, err := manager.JoinConversation(s, "u1_u2")
	req.NoError(err)
	req.True(added)

	added, err = manager.JoinConversation(s, "u1_u2")
	req.NoError(err)
	req.False(added)
}

func TestSessionManager_LeaveConversation(t *testing.T) {
	req := require.New(t)
	manager, registry := newTestSessions(4)
	s := manager.Connect("u1")
	_, err := manager.JoinConversation(s, "u1_u2")
	req.NoError(err)

	manager.LeaveConversation(s, "u1_u2")
	manager.LeaveConversation(s, "u1_u2")

	req.Empty(registry.MembersOf("u1_u2"))
	req.Empty(s.Rooms())
	req.False(s.Closed())
}

func TestSession_DeliverBufferFull(t *testing.T) {
	req := require.New(t)
	s := newSession("u1", 1)

	req.NoError(s.Deliver(models.Event{Type: models.EventDelivered}))
	req.ErrorIs(s.Deliver(models.Event{Type: models.EventDelivered}), ErrBufferFull)

	// 慢速的連線被關閉，之後的投遞一律拒絕
	req.True(s.Closed())
	req.ErrorIs(s.Deliver(models.Event{Type: models.EventDelivered}), ErrSessionClosed)
}

func TestSessionManager_Shutdown(t *testing.T) {
	req := require.New(t)
	manager, registry := newTestSessions(4)
	for _, u := range []string{"u1", "u2", "u3"} {
		s := manager.Connect(u)
		_, err := manager.JoinConversation(s, models.ConversationID(u, "u9"))
		req.NoError(err)
	}

	manager.Shutdown()

	req.Zero(manager.Count())
	req.Zero(registry.RoomCount())
}
