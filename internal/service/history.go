package service

import (
	"context"
	"math"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"
)

// HistoryService отдает историю страницами по pageSize сообщений.
// Страница 0 - самые новые, страница N пропускает N*pageSize сообщений.
type HistoryService interface {
	GetInitialMessages(ctx context.Context, roomID int64) (*domain.MessagePage, error)
	GetMessagesPage(ctx context.Context, roomID int64, page int) (*domain.MessagePage, error)
}

type historyService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	pageSize    int
	log         logger.Logger
}

func NewHistoryService(messageRepo repository.MessageRepository, roomRepo repository.RoomRepository, pageSize int, log logger.Logger) HistoryService {
	return &historyService{
		messageRepo: messageRepo,
		roomRepo:    roomRepo,
		pageSize:    pageSize,
		log:         log,
	}
}

func (s *historyService) GetInitialMessages(ctx context.Context, roomID int64) (*domain.MessagePage, error) {
	return s.GetMessagesPage(ctx, roomID, 0)
}

func (s *historyService) GetMessagesPage(ctx context.Context, roomID int64, page int) (*domain.MessagePage, error) {
	if page < 0 {
		return nil, apperrors.Invalid("page must not be negative")
	}
	// page*pageSize не должен переполнить int
	if page > math.MaxInt/s.pageSize {
		return nil, apperrors.Invalid("page is out of range")
	}

	if _, err := s.roomRepo.GetByID(ctx, roomID); err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	messages, err := s.messageRepo.ListPage(ctx, roomID, page*s.pageSize, s.pageSize)
	if err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	// Из БД приходят от новых к старым, клиенту нужно наоборот
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return &domain.MessagePage{
		Messages: messages,
		HasMore:  len(messages) == s.pageSize,
	}, nil
}
