package service

import (
	"context"
	"time"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	"chat_room/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actorUserID *int64, actorRole string, roomID *int64, eventType string, payload map[string]interface{})
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

// LogEvent пишет запись аудита. Ошибка записи не прерывает основную операцию.
func (s *auditService) LogEvent(ctx context.Context, actorUserID *int64, actorRole string, roomID *int64, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		RoomID:      roomID,
		EventType:   eventType,
		Payload:     payload,
	}

	if err := s.auditRepo.CreateLog(ctx, auditLog); err != nil {
		s.log.Warn("Failed to write audit log", "event_type", eventType, "error", err)
	}
}
