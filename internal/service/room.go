package service

import (
	"context"
	"errors"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"
)

type RoomService interface {
	GetByID(ctx context.Context, roomID int64) (*domain.ChatRoom, error)
	// Join создает членство. Повторный join - Conflict.
	Join(ctx context.Context, roomID, userID int64) (*domain.ChatRoom, error)
	// Leave удаляет членство. Leave без членства - Conflict.
	Leave(ctx context.Context, roomID, userID int64) (*domain.ChatRoom, error)
	// RequireMember возвращает членство или AuthorizationError
	RequireMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error)
	GetMembers(ctx context.Context, roomID int64) ([]*domain.ChatRoomMember, error)
	GetUserRooms(ctx context.Context, userID int64) ([]*domain.UserRoom, error)
}

type roomService struct {
	roomRepo repository.RoomRepository
	audit    AuditService
	log      logger.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, audit AuditService, log logger.Logger) RoomService {
	return &roomService{
		roomRepo: roomRepo,
		audit:    audit,
		log:      log,
	}
}

func (s *roomService) GetByID(ctx context.Context, roomID int64) (*domain.ChatRoom, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}
	return room, nil
}

func (s *roomService) Join(ctx context.Context, roomID, userID int64) (*domain.ChatRoom, error) {
	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// Проверка существования членства не нужна: UNIQUE в БД - единственный
	// надежный сигнал при конкурентных join
	member := &domain.ChatRoomMember{RoomID: roomID, UserID: userID}
	if err := s.roomRepo.CreateMember(ctx, member); err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	s.log.Info("User joined chat room", "room_id", roomID, "user_id", userID, "member_id", member.ID)
	s.audit.LogEvent(ctx, &userID, domain.ActorRoleUser, &roomID, domain.EventTypeRoomJoined, map[string]interface{}{
		"id_chat_room_member": member.ID,
	})

	return room, nil
}

func (s *roomService) Leave(ctx context.Context, roomID, userID int64) (*domain.ChatRoom, error) {
	room, err := s.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.roomRepo.DeleteMember(ctx, roomID, userID)
	if err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	s.log.Info("User left chat room", "room_id", roomID, "user_id", userID, "member_id", member.ID)
	s.audit.LogEvent(ctx, &userID, domain.ActorRoleUser, &roomID, domain.EventTypeRoomLeft, map[string]interface{}{
		"id_chat_room_member": member.ID,
	})

	return room, nil
}

func (s *roomService) RequireMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error) {
	member, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrMemberNotFound) {
			return nil, apperrors.Unauthorized(apperrors.ErrNotMember, msgNotMember)
		}
		return nil, storageError(err, msgRoomNotFound)
	}
	return member, nil
}

func (s *roomService) GetMembers(ctx context.Context, roomID int64) ([]*domain.ChatRoomMember, error) {
	members, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}
	return members, nil
}

func (s *roomService) GetUserRooms(ctx context.Context, userID int64) ([]*domain.UserRoom, error) {
	rooms, err := s.roomRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageError(err, msgRoomNotFound)
	}

	result := make([]*domain.UserRoom, 0, len(rooms))
	for _, room := range rooms {
		members, err := s.roomRepo.ListMembers(ctx, room.ID)
		if err != nil {
			return nil, storageError(err, msgRoomNotFound)
		}

		lastActivity, err := s.roomRepo.LastActivity(ctx, room.ID)
		if err != nil {
			return nil, storageError(err, msgRoomNotFound)
		}

		result = append(result, &domain.UserRoom{
			ChatRoom:     *room,
			Members:      members,
			LastActivity: lastActivity,
		})
	}

	return result, nil
}
