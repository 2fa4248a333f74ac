package domain

import (
	"time"
)

type User struct {
	ID        int64     `json:"id_user"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	IsOnline  bool      `json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
}

// SystemUser - автор системных уведомлений, которые не сохраняются в БД
var SystemUser = User{Name: "System"}
