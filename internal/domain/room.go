package domain

import (
	"time"
)

type ChatRoom struct {
	ID          int64     `json:"id_chat_room"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description *string   `json:"description,omitempty"`
	CreatedByID int64     `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`

	// SystemMemberID ссылается на служебного участника комнаты,
	// от имени которого пишутся системные сообщения
	SystemMemberID *int64 `json:"-"`
}

type ChatRoomMember struct {
	ID     int64 `json:"id_chat_room_member"`
	RoomID int64 `json:"id_chat_room"`
	UserID int64 `json:"id_user"`
	User   *User `json:"user,omitempty"`
}

// UserRoom - комната пользователя с участниками и временем последней активности
type UserRoom struct {
	ChatRoom
	Members      []*ChatRoomMember `json:"members"`
	LastActivity time.Time         `json:"last_activity"`
}
