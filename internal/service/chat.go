package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"
)

type ChatService interface {
	SendMessage(ctx context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error)
	// SendSystemMessage пишет сообщение от имени системного участника комнаты
	SendSystemMessage(ctx context.Context, roomID int64, content string) (*domain.ChatMessage, error)
	EditMessage(ctx context.Context, messageID, userID int64, content string) (*domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID, userID int64) (*domain.ChatMessage, error)
}

type chatService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	audit       AuditService
	log         logger.Logger
}

func NewChatService(
	messageRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	audit AuditService,
	log logger.Logger,
) ChatService {
	return &chatService{
		messageRepo: messageRepo,
		roomRepo:    roomRepo,
		userRepo:    userRepo,
		audit:       audit,
		log:         log,
	}
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperrors.Invalid("Message is required")
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageRunes {
		return "", apperrors.Invalid(fmt.Sprintf("Message must be at most %d characters", domain.MaxMessageRunes))
	}
	return content, nil
}

func (s *chatService) SendMessage(ctx context.Context, roomID, userID int64, content string) (*domain.ChatMessage, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	member, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrMemberNotFound) {
			return nil, storageError(err, msgRoomNotFound)
		}
		// Отличаем несуществующую комнату от отсутствия членства
		if _, roomErr := s.roomRepo.GetByID(ctx, roomID); roomErr != nil {
			return nil, storageError(roomErr, msgRoomNotFound)
		}
		return nil, apperrors.Conflict(apperrors.ErrNotMember, msgNotMember)
	}

	message := &domain.ChatMessage{
		RoomID:         roomID,
		AuthorMemberID: member.ID,
		AuthorUserID:   userID,
		Content:        content,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		// Сообщение уже сохранено, отдаем его без данных автора
		s.log.Warn("Failed to hydrate message author", "message_id", message.ID, "error", err)
	} else {
		message.User = user
	}

	return message, nil
}

func (s *chatService) SendSystemMessage(ctx context.Context, roomID int64, content string) (*domain.ChatMessage, error) {
	member, err := s.roomRepo.GetSystemMember(ctx, roomID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoSystemMember) {
			s.log.Error("Chat room has no system member", "room_id", roomID)
			return nil, apperrors.System(err, "")
		}
		return nil, storageError(err, msgRoomNotFound)
	}

	message := &domain.ChatMessage{
		RoomID:         roomID,
		AuthorMemberID: member.ID,
		AuthorUserID:   member.UserID,
		Content:        content,
		User:           member.User,
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	return message, nil
}

// loadOwned загружает сообщение и проверяет, что userID - его автор
func (s *chatService) loadOwned(ctx context.Context, messageID, userID int64) (*domain.ChatMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, storageError(err, msgMessageNotFound)
	}
	if message.AuthorUserID != userID {
		return nil, apperrors.Unauthorized(apperrors.ErrNotMessageAuthor, apperrors.ErrNotMessageAuthor.Error())
	}
	return message, nil
}

func (s *chatService) EditMessage(ctx context.Context, messageID, userID int64, content string) (*domain.ChatMessage, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	message, err := s.loadOwned(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if message.IsDeleted {
		return nil, apperrors.Conflict(apperrors.ErrMessageDeleted, "Deleted messages can't be edited")
	}

	message.Content = content
	if err := s.messageRepo.UpdateContent(ctx, message); err != nil {
		return nil, storageError(err, msgMessageNotFound)
	}

	roomID := message.RoomID
	s.audit.LogEvent(ctx, &userID, domain.ActorRoleUser, &roomID, domain.EventTypeMessageEdited, map[string]interface{}{
		"id_message": message.ID,
	})

	return message, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID, userID int64) (*domain.ChatMessage, error) {
	message, err := s.loadOwned(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if message.IsDeleted {
		return message, nil
	}

	if err := s.messageRepo.MarkDeleted(ctx, messageID); err != nil {
		return nil, storageError(err, msgMessageNotFound)
	}
	message.IsDeleted = true

	roomID := message.RoomID
	s.audit.LogEvent(ctx, &userID, domain.ActorRoleUser, &roomID, domain.EventTypeMessageDeleted, map[string]interface{}{
		"id_message": message.ID,
	})

	return message, nil
}
