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

type MessageRepository interface {
	Create(ctx context.Context, message *domain.ChatMessage) error
	GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error)
	UpdateContent(ctx context.Context, message *domain.ChatMessage) error
	MarkDeleted(ctx context.Context, id int64) error
	// ListPage возвращает сообщения от новых к старым
	ListPage(ctx context.Context, roomID int64, offset, limit int) ([]*domain.ChatMessage, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `
	msg.id_message, msg.id_chat_room, msg.id_chat_room_member, msg.id_user,
	msg.content, msg.sent_at, msg.edited_at, msg.is_deleted,
	u.id_user, u.name, u.email, u.avatar_url, u.is_online, u.created_at`

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	message := &domain.ChatMessage{User: &domain.User{}}
	err := row.Scan(
		&message.ID, &message.RoomID, &message.AuthorMemberID, &message.AuthorUserID,
		&message.Content, &message.SentAt, &message.EditedAt, &message.IsDeleted,
		&message.User.ID, &message.User.Name, &message.User.Email,
		&message.User.AvatarURL, &message.User.IsOnline, &message.User.CreatedAt,
	)
	return message, err
}

func (r *messageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id_chat_room, id_chat_room_member, id_user, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id_message, sent_at
	`

	err := r.db.QueryRow(ctx, query,
		message.RoomID, message.AuthorMemberID, message.AuthorUserID, message.Content,
	).Scan(&message.ID, &message.SentAt)
	if err != nil {
		r.log.Error("Failed to create message", "error", err, "room_id", message.RoomID)
		return fmt.Errorf("create message: %w", err)
	}

	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages msg
		JOIN users u ON u.id_user = msg.id_user
		WHERE msg.id_message = $1
	`

	message, err := scanMessage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, fmt.Errorf("get message: %w", err)
	}

	return message, nil
}

func (r *messageRepository) UpdateContent(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		UPDATE chat_messages
		SET content = $2, edited_at = now()
		WHERE id_message = $1
		RETURNING edited_at
	`

	err := r.db.QueryRow(ctx, query, message.ID, message.Content).Scan(&message.EditedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to update message", "error", err, "message_id", message.ID)
		return fmt.Errorf("update message: %w", err)
	}

	return nil
}

func (r *messageRepository) MarkDeleted(ctx context.Context, id int64) error {
	query := `UPDATE chat_messages SET is_deleted = TRUE WHERE id_message = $1`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete message", "error", err, "message_id", id)
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrMessageNotFound
	}

	return nil
}

func (r *messageRepository) ListPage(ctx context.Context, roomID int64, offset, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages msg
		JOIN users u ON u.id_user = msg.id_user
		WHERE msg.id_chat_room = $1
		ORDER BY msg.sent_at DESC, msg.id_message DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		r.log.Error("Failed to get messages", "error", err, "room_id", roomID)
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ChatMessage, 0, limit)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}
