package service

import (
	"chat_room/internal/config"
	"chat_room/internal/repository"
	"chat_room/pkg/logger"
)

type Services struct {
	Auth      AuthService
	User      UserService
	Room      RoomService
	Chat      ChatService
	History   HistoryService
	RateLimit RateLimitService
	Audit     AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		User:      NewUserService(repos.User, log),
		Room:      NewRoomService(repos.Room, audit, log),
		Chat:      NewChatService(repos.Message, repos.Room, repos.User, audit, log),
		History:   NewHistoryService(repos.Message, repos.Room, cfg.Chat.HistoryPageSize, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
		Audit:     audit,
	}
}
