package handler

import (
	"chat_room/internal/config"
	"chat_room/internal/realtime"
	"chat_room/internal/service"
	"chat_room/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	User      *UserHandler
	Room      *RoomHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, gateway *realtime.Gateway, checks map[string]Pinger, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(checks),
		User:      NewUserHandler(services.User, services.Room, log),
		Room:      NewRoomHandler(services.Room, log),
		Chat:      NewChatHandler(services.History, log),
		WebSocket: NewWebSocketHandler(gateway, cfg.Chat, log),
	}
}
