package service

import (
	"sync"

	"github.com/samber/lo"

	"match_chat/internal/metrics"
)

// RoomRegistry 記錄每個對話目前加入的連線
type RoomRegistry struct {
	rooms map[string]map[*Session]struct{} // conversationID -> session set
	mu    sync.RWMutex
}

// NewRoomRegistry 建立空的房間登記表
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[*Session]struct{}),
	}
}

// Join 將 session 加入對話，重複加入沒有額外效果；回傳是否為新加入
func (r *RoomRegistry) Join(conversationID string, session *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[conversationID]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[conversationID] = members
		metrics.ActiveRooms.Inc()
	}
	if _, exists := members[session]; exists {
		return false
	}
	members[session] = struct{}{}
	return true
}

// Leave 將 session 移出對話，不在房間內時不做任何事
func (r *RoomRegistry) Leave(conversationID string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(conversationID, session)
}

// LeaveAll 在同一個臨界區內將 session 移出多個對話
func (r *RoomRegistry) LeaveAll(conversationIDs []string, session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range conversationIDs {
		r.leaveLocked(id, session)
	}
}

func (r *RoomRegistry) leaveLocked(conversationID string, session *Session) {
	members, ok := r.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, session)
	// 房間空了就刪除，避免長時間執行後累積空房間
	if len(members) == 0 {
		delete(r.rooms, conversationID)
		metrics.ActiveRooms.Dec()
	}
}

// MembersOf 回傳對話成員的快照，呼叫端可在成員變動時安全地走訪
func (r *RoomRegistry) MembersOf(conversationID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.rooms[conversationID])
}

// MemberCount 回傳對話目前的連線數
func (r *RoomRegistry) MemberCount(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[conversationID])
}

// RoomCount 回傳至少有一個連線的對話數
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
