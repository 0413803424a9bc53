package service

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRegistry_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry()
	session := newSession("u1", 4)

	// When the same session joins twice
	req.True(registry.Join("u1_u2", session))
	req.False(registry.Join("u1_u2", session))

	// Then membership is the same as joining once
	req.Equal([]*Session{session}, registry.MembersOf("u1_u2"))
	req.Equal(1, registry.MemberCount("u1_u2"))
	req.Equal(1, registry.RoomCount())
}

func TestRoomRegistry_LeaveRemovesEmptyRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry()
	s1 := newSession("u1", 4)
	s2 := newSession("u2", 4)

	registry.Join("u1_u2", s1)
	registry.Join("u1_u2", s2)

	registry.Leave("u1_u2", s1)
	req.Equal([]*Session{s2}, registry.MembersOf("u1_u2"))

	// Leaving twice is a no-op
	registry.Leave("u1_u2", s1)
	registry.Leave("u1_u2", s2)

	req.Empty(registry.MembersOf("u1_u2"))
	req.Zero(registry.RoomCount())
}

func TestRoomRegistry_MembersOfIsSnapshot(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry()
	s1 := newSession("u1", 4)
	s2 := newSession("u2", 4)
	registry.Join("u1_u2", s1)

	snapshot := registry.MembersOf("u1_u2")
	registry.Join("u1_u2", s2)
	registry.Leave("u1_u2", s1)

	req.Equal([]*Session{s1}, snapshot)
	req.Equal([]*Session{s2}, registry.MembersOf("u1_u2"))
}

func TestRoomRegistry_UnknownRoom(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry()

	req.Empty(registry.MembersOf("u1_u2"))
	req.Zero(registry.MemberCount("u1_u2"))
}

func TestRoomRegistry_ConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	registry := NewRoomRegistry()
	manager := NewSessionManager(registry, 4, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := manager.Connect("u1")
			_, err := manager.JoinConversation(s, "u1_u2")
			assert.NoError(t, err)
			_ = registry.MembersOf("u1_u2")
			manager.Disconnect(s)
		}()
	}
	wg.Wait()

	req.Zero(registry.RoomCount())
	req.Zero(manager.Count())
}
