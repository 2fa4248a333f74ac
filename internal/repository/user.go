package repository

import (
	"context"
	"errors"
	"fmt"

	"chat_room/internal/domain"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	SetOnline(ctx context.Context, id int64, online bool) error
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id_user, name, email, avatar_url, is_online, created_at
		FROM users
		WHERE id_user = $1
	`

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.AvatarURL, &user.IsOnline, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get user", "error", err, "user_id", id)
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (r *userRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	query := `UPDATE users SET is_online = $2 WHERE id_user = $1`

	tag, err := r.db.Exec(ctx, query, id, online)
	if err != nil {
		r.log.Error("Failed to update connection state", "error", err, "user_id", id)
		return fmt.Errorf("set online: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
