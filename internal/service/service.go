package service

import (
	"github.com/rs/zerolog"

	"match_chat/internal/repository"
	"match_chat/pkg/config"
)

type Services struct {
	Registry         *RoomRegistry
	Sessions         *SessionManager
	Relay            *RelayService
	History          *HistoryService
	WebSocketManager *WebSocketManager
}

// NewServices 建立轉送核心；RoomRegistry 隨服務建立，並在 Shutdown 時清空
func NewServices(repos *repository.Repositories, cfg *config.Config, log zerolog.Logger) *Services {
	registry := NewRoomRegistry()
	sessions := NewSessionManager(registry, cfg.WebSocket.SendBuffer, log.With().Str("component", "sessions").Logger())

	relay := NewRelayService(repos.Message, registry, RelayOptions{
		MaxBodyLength:  cfg.Relay.MaxBodyLength,
		StorageTimeout: cfg.Relay.StorageTimeout,
		StorageRetries: cfg.Relay.StorageRetries,
		RetryBackoff:   cfg.Relay.RetryBackoff,
		EchoToSender:   cfg.Relay.EchoToSender,
	}, log.With().Str("component", "relay").Logger())

	history := NewHistoryService(repos.Message, cfg.Relay.StorageTimeout)

	wsManager := NewWebSocketManager(sessions, relay, WebSocketOptions{
		ReadLimit:  cfg.WebSocket.ReadLimit,
		PongWait:   cfg.WebSocket.PongWait,
		PingPeriod: cfg.WebSocket.PingPeriod,
		WriteWait:  cfg.WebSocket.WriteWait,
	}, log.With().Str("component", "websocket").Logger())

	return &Services{
		Registry:         registry,
		Sessions:         sessions,
		Relay:            relay,
		History:          history,
		WebSocketManager: wsManager,
	}
}

// Shutdown 中斷所有連線並移出所有房間
func (s *Services) Shutdown() {
	s.Sessions.Shutdown()
}
