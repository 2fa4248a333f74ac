package testutil

import (
	"testing"
	"time"

	"chat_room/internal/config"
	"chat_room/internal/domain"
	"chat_room/pkg/jwt"
)

const (
	TestSecret = "test-access-secret"
	TestIssuer = "chat-room"
)

func Config() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			AccessSecret: TestSecret,
			Issuer:       TestIssuer,
		},
		Chat: config.ChatConfig{
			HistoryPageSize: 150,
			SendBufferSize:  256,
			MaxFrameBytes:   16384,
			EventTimeout:    5 * time.Second,
			WriteWait:       5 * time.Second,
			PongWait:        30 * time.Second,
			RateLimit:       1000,
			RateWindow:      time.Second,
		},
		Log: config.LogConfig{Level: "error"},
	}
}

func Token(t testing.TB, user *domain.User) string {
	t.Helper()

	token, err := jwt.GenerateAccessToken(user.ID, user.Name, user.Email, TestIssuer, TestSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}
