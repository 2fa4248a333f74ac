package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"chat_room/internal/domain"
	"chat_room/internal/handler"
	"chat_room/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) get(t *testing.T, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestREST_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/api/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.get(t, "/api/v1/users/me", "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestREST_GetMe(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")

	resp := ts.get(t, "/api/v1/users/me", testutil.Token(t, alice))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user domain.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, alice.ID, user.ID)
	assert.Equal(t, "alice", user.Name)
}

func TestREST_Rooms(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	room := ts.store.AddRoom("general", alice.ID)
	ts.store.AddMember(room.ID, alice.ID)
	token := testutil.Token(t, alice)
	roomPath := "/api/v1/chat-rooms/" + strconv.FormatInt(room.ID, 10)

	resp := ts.get(t, roomPath, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got domain.ChatRoom
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "general", got.Name)

	resp = ts.get(t, roomPath+"/members", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var members struct {
		Members []*domain.ChatRoomMember `json:"chat_room_members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&members))
	require.Len(t, members.Members, 1)
	assert.Equal(t, alice.ID, members.Members[0].UserID)

	resp = ts.get(t, "/api/v1/users/me/chat-rooms", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rooms struct {
		Rooms []*domain.UserRoom `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, room.ID, rooms.Rooms[0].ID)

	resp = ts.get(t, "/api/v1/chat-rooms/999", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.get(t, "/api/v1/chat-rooms/abc", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestREST_GetMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	room := ts.store.AddRoom("general", alice.ID)
	ts.store.AddMember(room.ID, alice.ID)
	ts.store.AddMessages(room.ID, alice.ID, 160)
	token := testutil.Token(t, alice)
	path := "/api/v1/chat-rooms/" + strconv.FormatInt(room.ID, 10) + "/messages"

	resp := ts.get(t, path, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page domain.MessagePage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Messages, 150)
	assert.True(t, page.HasMore)
	assert.Equal(t, "message 160", page.Messages[149].Content)

	resp = ts.get(t, path+"?page=1", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page = domain.MessagePage{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Len(t, page.Messages, 10)
	assert.False(t, page.HasMore)

	resp = ts.get(t, path+"?page=-1", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.get(t, path+"?page=9223372036854775807", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.get(t, path+"?page=x", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		checks map[string]handler.Pinger
		status int
	}{
		{
			name:   "all dependencies up",
			checks: map[string]handler.Pinger{"postgres": handler.PingFunc(func(context.Context) error { return nil })},
			status: http.StatusOK,
		},
		{
			name: "redis down",
			checks: map[string]handler.Pinger{
				"postgres": handler.PingFunc(func(context.Context) error { return nil }),
				"redis":    handler.PingFunc(func(context.Context) error { return errors.New("connection refused") }),
			},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/health", handler.NewHealthHandler(tt.checks).Check)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
