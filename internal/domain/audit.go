package domain

import (
	"time"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *int64                 `json:"actor_user_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	RoomID      *int64                 `json:"room_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	ActorRoleUser   = "user"
	ActorRoleSystem = "system"
)

const (
	EventTypeRoomJoined     = "ROOM_JOINED"
	EventTypeRoomLeft       = "ROOM_LEFT"
	EventTypeMessageEdited  = "MESSAGE_EDITED"
	EventTypeMessageDeleted = "MESSAGE_DELETED"
)
