package domain

import (
	"time"
)

type ChatMessage struct {
	ID             int64      `json:"id_message"`
	RoomID         int64      `json:"id_chat_room"`
	AuthorMemberID int64      `json:"id_chat_room_member"`
	AuthorUserID   int64      `json:"id_user"`
	Content        string     `json:"content"`
	SentAt         time.Time  `json:"sent_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	User           *User      `json:"user,omitempty"`
}

// MessagePage - страница истории, сообщения от старых к новым
type MessagePage struct {
	Messages []*ChatMessage `json:"messages"`
	HasMore  bool           `json:"hasMore"`
}

const MaxMessageRunes = 2000

const (
	JoinedChatTemplate = "%s has joined the chat"
	LeftChatTemplate   = "%s has left the chat"
	JoinedChatNotice   = "You have joined the chat"
)
