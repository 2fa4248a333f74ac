package realtime

import (
	"context"
	"encoding/json"

	"chat_room/internal/domain"
	apperrors "chat_room/pkg/errors"
)

// Входящие события (клиент -> сервер)
const (
	EventJoinChat         = "join_chat"
	EventEnterChat        = "enter_chat"
	EventLeaveChat        = "leave_chat"
	EventMessage          = "message"
	EventEditMessage      = "edit_message"
	EventDeleteMessage    = "delete_message"
	EventLoadMoreMessages = "load_more_messages"
)

// Исходящие события (сервер -> клиент). EventMessage используется в обе стороны.
const (
	EventSavedMessages = "saved_messages"
	EventMoreMessages  = "more_messages"
	EventMembersList   = "chat_room_members_list"
	EventUserRooms     = "user_rooms_list"
	EventJoinedRoom    = "joined_room"
	EventError         = "error"
)

// Envelope - формат кадра в обе стороны: {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RoomPayload struct {
	RoomID int64 `json:"id_chat_room"`
}

func (p RoomPayload) validate() error {
	if p.RoomID <= 0 {
		return apperrors.Invalid("id_chat_room is required")
	}
	return nil
}

type SendMessagePayload struct {
	Message string `json:"message"`
	RoomID  int64  `json:"id_chat_room"`
}

func (p SendMessagePayload) validate() error {
	if p.RoomID <= 0 {
		return apperrors.Invalid("id_chat_room is required")
	}
	return nil
}

type EditMessagePayload struct {
	MessageID  int64  `json:"id_message"`
	NewMessage string `json:"new_message"`
}

func (p EditMessagePayload) validate() error {
	if p.MessageID <= 0 {
		return apperrors.Invalid("id_message is required")
	}
	return nil
}

type DeleteMessagePayload struct {
	MessageID int64 `json:"id_message"`
}

func (p DeleteMessagePayload) validate() error {
	if p.MessageID <= 0 {
		return apperrors.Invalid("id_message is required")
	}
	return nil
}

type LoadMorePayload struct {
	RoomID int64 `json:"id_chat_room"`
	Page   int   `json:"page"`
}

func (p LoadMorePayload) validate() error {
	if p.RoomID <= 0 {
		return apperrors.Invalid("id_chat_room is required")
	}
	if p.Page < 1 {
		return apperrors.Invalid("page must start at 1")
	}
	return nil
}

type MembersListPayload struct {
	Members []*domain.ChatRoomMember `json:"chat_room_members"`
}

type UserRoomsPayload struct {
	Rooms []*domain.UserRoom `json:"rooms"`
}

type JoinedRoomPayload struct {
	Room *domain.ChatRoom `json:"room"`
}

type ErrorPayload struct {
	Event   string         `json:"event,omitempty"`
	Code    apperrors.Kind `json:"code"`
	Message string         `json:"message"`
}

type validator interface {
	validate() error
}

// handlerFunc - обработчик события после декодирования конверта.
// Вызывается только для аутентифицированной сессии.
type handlerFunc func(ctx context.Context, sess *Session, user *domain.User, raw json.RawMessage) error

// bind декодирует payload в конкретный тип P и валидирует его до вызова fn
func bind[P any](fn func(ctx context.Context, sess *Session, user *domain.User, payload P) error) handlerFunc {
	return func(ctx context.Context, sess *Session, user *domain.User, raw json.RawMessage) error {
		var payload P
		if len(raw) == 0 {
			return apperrors.Invalid("data is required")
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return apperrors.Invalid("malformed data")
		}
		if v, ok := any(payload).(validator); ok {
			if err := v.validate(); err != nil {
				return err
			}
		}
		return fn(ctx, sess, user, payload)
	}
}

func encodeFrame(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
