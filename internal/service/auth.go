package service

import (
	"context"
	"errors"

	"chat_room/internal/config"
	"chat_room/internal/domain"
	"chat_room/internal/repository"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/jwt"
	"chat_room/pkg/logger"
)

// AuthService только проверяет токены. Выдача токенов - в сервисе авторизации.
type AuthService interface {
	ValidateToken(ctx context.Context, tokenString string) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) ValidateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	if tokenString == "" {
		return nil, apperrors.Unauthenticated(apperrors.ErrUnauthorized, "No authorization token provided")
	}

	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		s.log.Debug("Token validation failed", "error", err)
		return nil, apperrors.Unauthenticated(err, "Token is invalid or expired")
	}

	if s.jwtCfg.Issuer != "" && claims.Issuer != "" && claims.Issuer != s.jwtCfg.Issuer {
		return nil, apperrors.Unauthenticated(apperrors.ErrInvalidToken, "Token is invalid or expired")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthenticated(err, "User not found")
		}
		return nil, apperrors.System(err, "")
	}

	return user, nil
}
