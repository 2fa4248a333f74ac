package service

import (
	"context"

	"chat_room/internal/domain"
	"chat_room/internal/repository"
	"chat_room/pkg/logger"
)

type UserService interface {
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	SetOnline(ctx context.Context, userID int64, online bool) error
}

type userService struct {
	userRepo repository.UserRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		log:      log,
	}
}

func (s *userService) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storageError(err, "User not found")
	}
	return user, nil
}

func (s *userService) SetOnline(ctx context.Context, userID int64, online bool) error {
	if err := s.userRepo.SetOnline(ctx, userID, online); err != nil {
		return storageError(err, "User not found")
	}
	s.log.Debug("Connection state updated", "user_id", userID, "is_online", online)
	return nil
}
