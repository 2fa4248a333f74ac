package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat_room/internal/domain"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.ChatRoom, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.ChatRoom, error)
	GetMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error)
	GetSystemMember(ctx context.Context, roomID int64) (*domain.ChatRoomMember, error)
	CreateMember(ctx context.Context, member *domain.ChatRoomMember) error
	DeleteMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error)
	ListMembers(ctx context.Context, roomID int64) ([]*domain.ChatRoomMember, error)
	LastActivity(ctx context.Context, roomID int64) (time.Time, error)
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

const roomColumns = `r.id_chat_room, r.name, r.category, r.description, r.created_by_id, r.system_member_id, r.created_at`

func scanRoom(row pgx.Row) (*domain.ChatRoom, error) {
	room := &domain.ChatRoom{}
	err := row.Scan(
		&room.ID, &room.Name, &room.Category, &room.Description,
		&room.CreatedByID, &room.SystemMemberID, &room.CreatedAt,
	)
	return room, err
}

func (r *roomRepository) GetByID(ctx context.Context, id int64) (*domain.ChatRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM chat_rooms r WHERE r.id_chat_room = $1`

	room, err := scanRoom(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get chat room", "error", err, "room_id", id)
		return nil, fmt.Errorf("get chat room: %w", err)
	}

	return room, nil
}

func (r *roomRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.ChatRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms r
		JOIN chat_room_members m ON m.id_chat_room = r.id_chat_room
		WHERE m.id_user = $1
		ORDER BY r.id_chat_room
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list user rooms", "error", err, "user_id", userID)
		return nil, fmt.Errorf("list user rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*domain.ChatRoom, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			r.log.Error("Failed to scan chat room", "error", err)
			return nil, fmt.Errorf("scan chat room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (r *roomRepository) GetMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error) {
	query := `
		SELECT id_chat_room_member, id_chat_room, id_user
		FROM chat_room_members
		WHERE id_chat_room = $1 AND id_user = $2
	`

	member := &domain.ChatRoomMember{}
	err := r.db.QueryRow(ctx, query, roomID, userID).Scan(&member.ID, &member.RoomID, &member.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMemberNotFound
		}
		r.log.Error("Failed to get chat member", "error", err, "room_id", roomID, "user_id", userID)
		return nil, fmt.Errorf("get chat member: %w", err)
	}

	return member, nil
}

func (r *roomRepository) GetSystemMember(ctx context.Context, roomID int64) (*domain.ChatRoomMember, error) {
	query := `
		SELECT m.id_chat_room_member, m.id_chat_room, m.id_user,
		       u.id_user, u.name, u.email, u.avatar_url, u.is_online, u.created_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.id_chat_room_member = r.system_member_id
		JOIN users u ON u.id_user = m.id_user
		WHERE r.id_chat_room = $1
	`

	member := &domain.ChatRoomMember{User: &domain.User{}}
	err := r.db.QueryRow(ctx, query, roomID).Scan(
		&member.ID, &member.RoomID, &member.UserID,
		&member.User.ID, &member.User.Name, &member.User.Email,
		&member.User.AvatarURL, &member.User.IsOnline, &member.User.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNoSystemMember
		}
		r.log.Error("Failed to get system member", "error", err, "room_id", roomID)
		return nil, fmt.Errorf("get system member: %w", err)
	}

	return member, nil
}

// CreateMember полагается на UNIQUE (id_chat_room, id_user): при гонке двух
// join второй получает ErrAlreadyMember
func (r *roomRepository) CreateMember(ctx context.Context, member *domain.ChatRoomMember) error {
	query := `
		INSERT INTO chat_room_members (id_chat_room, id_user)
		VALUES ($1, $2)
		RETURNING id_chat_room_member
	`

	err := r.db.QueryRow(ctx, query, member.RoomID, member.UserID).Scan(&member.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Код 23505 = unique_violation
			if pgErr.Code == "23505" {
				r.log.Warn("Member already exists (unique violation)", "room_id", member.RoomID, "user_id", member.UserID)
				return apperrors.ErrAlreadyMember
			}
			// 23503 = foreign_key_violation, комнаты или пользователя нет
			if pgErr.Code == "23503" {
				return apperrors.ErrRoomNotFound
			}
		}
		r.log.Error("Failed to create chat member", "error", err, "room_id", member.RoomID, "user_id", member.UserID)
		return fmt.Errorf("create chat member: %w", err)
	}

	return nil
}

func (r *roomRepository) DeleteMember(ctx context.Context, roomID, userID int64) (*domain.ChatRoomMember, error) {
	query := `
		DELETE FROM chat_room_members
		WHERE id_chat_room = $1 AND id_user = $2
		RETURNING id_chat_room_member, id_chat_room, id_user
	`

	member := &domain.ChatRoomMember{}
	err := r.db.QueryRow(ctx, query, roomID, userID).Scan(&member.ID, &member.RoomID, &member.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotMember
		}
		r.log.Error("Failed to delete chat member", "error", err, "room_id", roomID, "user_id", userID)
		return nil, fmt.Errorf("delete chat member: %w", err)
	}

	return member, nil
}

// ListMembers возвращает участников комнаты без служебного system member
func (r *roomRepository) ListMembers(ctx context.Context, roomID int64) ([]*domain.ChatRoomMember, error) {
	query := `
		SELECT m.id_chat_room_member, m.id_chat_room, m.id_user,
		       u.id_user, u.name, u.email, u.avatar_url, u.is_online, u.created_at
		FROM chat_room_members m
		JOIN chat_rooms r ON r.id_chat_room = m.id_chat_room
		JOIN users u ON u.id_user = m.id_user
		WHERE m.id_chat_room = $1
		  AND m.id_chat_room_member IS DISTINCT FROM r.system_member_id
		ORDER BY m.id_chat_room_member
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list chat members", "error", err, "room_id", roomID)
		return nil, fmt.Errorf("list chat members: %w", err)
	}
	defer rows.Close()

	members := make([]*domain.ChatRoomMember, 0)
	for rows.Next() {
		member := &domain.ChatRoomMember{User: &domain.User{}}
		err := rows.Scan(
			&member.ID, &member.RoomID, &member.UserID,
			&member.User.ID, &member.User.Name, &member.User.Email,
			&member.User.AvatarURL, &member.User.IsOnline, &member.User.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan chat member", "error", err)
			return nil, fmt.Errorf("scan chat member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (r *roomRepository) LastActivity(ctx context.Context, roomID int64) (time.Time, error) {
	query := `
		SELECT COALESCE(MAX(msg.sent_at), r.created_at)
		FROM chat_rooms r
		LEFT JOIN chat_messages msg ON msg.id_chat_room = r.id_chat_room
		WHERE r.id_chat_room = $1
		GROUP BY r.created_at
	`

	var last time.Time
	if err := r.db.QueryRow(ctx, query, roomID).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get last activity", "error", err, "room_id", roomID)
		return time.Time{}, fmt.Errorf("last activity: %w", err)
	}

	return last, nil
}
