package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"chat_room/internal/domain"
	"chat_room/internal/handler"
	"chat_room/internal/middleware"
	"chat_room/internal/realtime"
	"chat_room/internal/service"
	"chat_room/internal/testutil"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store *testutil.Store
	srv   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testutil.Config()
	log := logger.NewNop()
	store := testutil.NewStore()
	services := service.NewServices(store.Repositories(), cfg, log)

	gateway := realtime.NewGateway(realtime.NewHub(log), realtime.NewRegistry(), services, cfg.Chat, log)
	handlers := handler.NewHandlers(services, gateway, map[string]handler.Pinger{}, cfg, log)
	authMiddleware := middleware.NewAuthMiddleware(services.Auth, log)

	router := gin.New()
	router.Use(middleware.ErrorHandler(log))
	router.GET("/health", handlers.Health.Check)
	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	v1.GET("/users/me", handlers.User.GetMe)
	v1.GET("/users/me/chat-rooms", handlers.User.GetMyRooms)
	v1.GET("/chat-rooms/:id", handlers.Room.GetByID)
	v1.GET("/chat-rooms/:id/members", handlers.Room.GetMembers)
	v1.GET("/chat-rooms/:id/messages", handlers.Chat.GetMessages)
	router.GET("/ws/chat-room", handlers.WebSocket.HandleChat)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		gateway.Shutdown()
		srv.Close()
	})

	return &testServer{store: store, srv: srv}
}

func (s *testServer) dial(t *testing.T, token, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/chat-room?token=" + token + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(realtime.Envelope{Event: event, Data: raw}))
}

// readUntil пропускает кадры, пока не встретит event
func readUntil(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env realtime.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env.Data
		}
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) *domain.ChatMessage {
	t.Helper()

	var message domain.ChatMessage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, realtime.EventMessage), &message))
	return &message
}

func readError(t *testing.T, conn *websocket.Conn) realtime.ErrorPayload {
	t.Helper()

	var payload realtime.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, realtime.EventError), &payload))
	return payload
}

func TestWebSocket_RejectsInvalidToken(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/chat-room?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func readMembers(t *testing.T, conn *websocket.Conn) realtime.MembersListPayload {
	t.Helper()

	var payload realtime.MembersListPayload
	require.NoError(t, json.Unmarshal(readUntil(t, conn, realtime.EventMembersList), &payload))
	return payload
}

// readFramesUntil возвращает все кадры до event включительно
func readFramesUntil(t *testing.T, conn *websocket.Conn, event string) []realtime.Envelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	var frames []realtime.Envelope
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var env realtime.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		frames = append(frames, env)
		if env.Event == event {
			return frames
		}
	}
}

func memberOnline(payload realtime.MembersListPayload, userID int64) (online, found bool) {
	for _, m := range payload.Members {
		if m.UserID == userID && m.User != nil {
			return m.User.IsOnline, true
		}
	}
	return false, false
}

func TestWebSocket_ChatFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	bob := ts.store.AddUser("bob")
	room := ts.store.AddRoom("general", bob.ID)
	ts.store.AddMember(room.ID, bob.ID)

	bobConn := ts.dial(t, testutil.Token(t, bob), "&id_chat_room="+strconv.FormatInt(room.ID, 10))
	readUntil(t, bobConn, realtime.EventSavedMessages)
	readUntil(t, bobConn, realtime.EventMembersList)
	assert.Eventually(t, func() bool { return ts.store.IsOnline(bob.ID) }, time.Second, 10*time.Millisecond)

	aliceConn := ts.dial(t, testutil.Token(t, alice), "")
	send(t, aliceConn, realtime.EventJoinChat, realtime.RoomPayload{RoomID: room.ID})

	// вошедший получает приватное уведомление, а не системное сообщение комнаты
	notice := readMessage(t, aliceConn)
	assert.Equal(t, domain.JoinedChatNotice, notice.Content)

	var rooms realtime.UserRoomsPayload
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventUserRooms), &rooms))
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, room.ID, rooms.Rooms[0].ID)

	var joined realtime.JoinedRoomPayload
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventJoinedRoom), &joined))
	assert.Equal(t, room.ID, joined.Room.ID)

	var history domain.MessagePage
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventSavedMessages), &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "alice has joined the chat", history.Messages[0].Content)
	assert.False(t, history.HasMore)

	var members realtime.MembersListPayload
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventMembersList), &members))
	assert.Len(t, members.Members, 2)

	systemMessage := readMessage(t, bobConn)
	assert.Equal(t, "alice has joined the chat", systemMessage.Content)
	require.NotNil(t, systemMessage.User)
	assert.Equal(t, "System", systemMessage.User.Name)

	send(t, aliceConn, realtime.EventMessage, realtime.SendMessagePayload{Message: "hi bob", RoomID: room.ID})
	fromAlice := readMessage(t, aliceConn)
	atBob := readMessage(t, bobConn)
	assert.Equal(t, "hi bob", fromAlice.Content)
	assert.Equal(t, fromAlice.ID, atBob.ID)
	assert.Equal(t, alice.ID, atBob.AuthorUserID)

	// чужое сообщение редактировать нельзя
	send(t, bobConn, realtime.EventEditMessage, realtime.EditMessagePayload{MessageID: fromAlice.ID, NewMessage: "hacked"})
	errPayload := readError(t, bobConn)
	assert.Equal(t, realtime.EventEditMessage, errPayload.Event)
	assert.Equal(t, apperrors.KindAuthorization, errPayload.Code)

	send(t, aliceConn, realtime.EventEditMessage, realtime.EditMessagePayload{MessageID: fromAlice.ID, NewMessage: "hi Bob"})
	edited := readMessage(t, bobConn)
	assert.Equal(t, fromAlice.ID, edited.ID)
	assert.Equal(t, "hi Bob", edited.Content)
	assert.NotNil(t, edited.EditedAt)
	readMessage(t, aliceConn)

	send(t, aliceConn, realtime.EventDeleteMessage, realtime.DeleteMessagePayload{MessageID: fromAlice.ID})
	deleted := readMessage(t, bobConn)
	assert.True(t, deleted.IsDeleted)
	readMessage(t, aliceConn)

	send(t, aliceConn, realtime.EventLeaveChat, realtime.RoomPayload{RoomID: room.ID})
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventUserRooms), &rooms))
	assert.Empty(t, rooms.Rooms)

	left := readMessage(t, bobConn)
	assert.Equal(t, "alice has left the chat", left.Content)
	assert.Zero(t, ts.store.MemberCount(room.ID, alice.ID))

	// оставшиеся участники получают список уже без alice
	remaining := readMembers(t, bobConn)
	require.Len(t, remaining.Members, 1)
	assert.Equal(t, bob.ID, remaining.Members[0].UserID)

	send(t, aliceConn, realtime.EventLeaveChat, realtime.RoomPayload{RoomID: room.ID})
	errPayload = readError(t, aliceConn)
	assert.Equal(t, apperrors.KindConflict, errPayload.Code)
}

func TestWebSocket_RejectsBadFrames(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	room := ts.store.AddRoom("general", alice.ID)
	conn := ts.dial(t, testutil.Token(t, alice), "")

	send(t, conn, "shout", realtime.RoomPayload{RoomID: room.ID})
	errPayload := readError(t, conn)
	assert.Equal(t, "shout", errPayload.Event)
	assert.Equal(t, apperrors.KindInvalidArgument, errPayload.Code)

	send(t, conn, realtime.EventEnterChat, realtime.RoomPayload{RoomID: room.ID})
	errPayload = readError(t, conn)
	assert.Equal(t, apperrors.KindAuthorization, errPayload.Code)

	send(t, conn, realtime.EventMessage, realtime.SendMessagePayload{Message: "hello", RoomID: room.ID})
	errPayload = readError(t, conn)
	assert.Equal(t, apperrors.KindConflict, errPayload.Code)
	assert.Zero(t, ts.store.MessageCount(room.ID))

	send(t, conn, realtime.EventLoadMoreMessages, realtime.LoadMorePayload{RoomID: room.ID, Page: 0})
	errPayload = readError(t, conn)
	assert.Equal(t, apperrors.KindInvalidArgument, errPayload.Code)

	// после трех нечитаемых кадров подряд сервер закрывает соединение
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		assert.Equal(t, apperrors.KindInvalidArgument, readError(t, conn).Code)
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestWebSocket_LoadMoreMessages(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	room := ts.store.AddRoom("general", alice.ID)
	ts.store.AddMember(room.ID, alice.ID)
	ts.store.AddMessages(room.ID, alice.ID, 200)

	conn := ts.dial(t, testutil.Token(t, alice), "&id_chat_room="+strconv.FormatInt(room.ID, 10))

	var initial domain.MessagePage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, realtime.EventSavedMessages), &initial))
	assert.Len(t, initial.Messages, 150)
	assert.True(t, initial.HasMore)

	send(t, conn, realtime.EventLoadMoreMessages, realtime.LoadMorePayload{RoomID: room.ID, Page: 1})
	var more domain.MessagePage
	require.NoError(t, json.Unmarshal(readUntil(t, conn, realtime.EventMoreMessages), &more))
	assert.Len(t, more.Messages, 50)
	assert.False(t, more.HasMore)
	assert.Equal(t, "message 1", more.Messages[0].Content)
}

func TestWebSocket_DisconnectMarksUserOffline(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	token := testutil.Token(t, alice)

	first := ts.dial(t, token, "")
	second := ts.dial(t, token, "")
	assert.Eventually(t, func() bool { return ts.store.IsOnline(alice.ID) }, time.Second, 10*time.Millisecond)

	// вторая вкладка еще открыта
	require.NoError(t, first.Close())
	time.Sleep(100 * time.Millisecond)
	assert.True(t, ts.store.IsOnline(alice.ID))

	require.NoError(t, second.Close())
	assert.Eventually(t, func() bool { return !ts.store.IsOnline(alice.ID) }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_JoinerSeesOwnJoinOnlyInHistory(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	room := ts.store.AddRoom("general", alice.ID)

	conn := ts.dial(t, testutil.Token(t, alice), "")
	send(t, conn, realtime.EventJoinChat, realtime.RoomPayload{RoomID: room.ID})

	var live []*domain.ChatMessage
	var history domain.MessagePage
	for _, env := range readFramesUntil(t, conn, realtime.EventMembersList) {
		switch env.Event {
		case realtime.EventMessage:
			var message domain.ChatMessage
			require.NoError(t, json.Unmarshal(env.Data, &message))
			live = append(live, &message)
		case realtime.EventSavedMessages:
			require.NoError(t, json.Unmarshal(env.Data, &history))
		}
	}

	require.Len(t, live, 1)
	assert.Equal(t, domain.JoinedChatNotice, live[0].Content)

	require.Len(t, history.Messages, 1)
	assert.Equal(t, "alice has joined the chat", history.Messages[0].Content)
}

func TestWebSocket_EnterAnotherRoomLeavesPreviousGroup(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	bob := ts.store.AddUser("bob")
	first := ts.store.AddRoom("first", alice.ID)
	second := ts.store.AddRoom("second", alice.ID)
	ts.store.AddMember(first.ID, alice.ID)
	ts.store.AddMember(second.ID, alice.ID)
	ts.store.AddMember(first.ID, bob.ID)

	aliceConn := ts.dial(t, testutil.Token(t, alice), "&id_chat_room="+strconv.FormatInt(first.ID, 10))
	readUntil(t, aliceConn, realtime.EventSavedMessages)
	readMembers(t, aliceConn)

	bobConn := ts.dial(t, testutil.Token(t, bob), "&id_chat_room="+strconv.FormatInt(first.ID, 10))
	readUntil(t, bobConn, realtime.EventSavedMessages)
	readMembers(t, bobConn)

	send(t, aliceConn, realtime.EventEnterChat, realtime.RoomPayload{RoomID: second.ID})
	var history domain.MessagePage
	require.NoError(t, json.Unmarshal(readUntil(t, aliceConn, realtime.EventSavedMessages), &history))
	assert.Empty(t, history.Messages)
	readMembers(t, aliceConn)

	send(t, bobConn, realtime.EventMessage, realtime.SendMessagePayload{Message: "anyone here?", RoomID: first.ID})
	assert.Equal(t, "anyone here?", readMessage(t, bobConn).Content)

	// первый кадр message у alice - ее сообщение во второй комнате, а не сообщение bob
	send(t, aliceConn, realtime.EventMessage, realtime.SendMessagePayload{Message: "second room", RoomID: second.ID})
	got := readMessage(t, aliceConn)
	assert.Equal(t, "second room", got.Content)
	assert.Equal(t, second.ID, got.RoomID)

	// членство в первой комнате сохраняется
	assert.Equal(t, 1, ts.store.MemberCount(first.ID, alice.ID))
}

func TestWebSocket_DisconnectBroadcastsPresence(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.store.AddUser("alice")
	bob := ts.store.AddUser("bob")
	room := ts.store.AddRoom("general", alice.ID)
	ts.store.AddMember(room.ID, alice.ID)
	ts.store.AddMember(room.ID, bob.ID)

	aliceConn := ts.dial(t, testutil.Token(t, alice), "&id_chat_room="+strconv.FormatInt(room.ID, 10))
	readUntil(t, aliceConn, realtime.EventSavedMessages)
	readMembers(t, aliceConn)

	bobConn := ts.dial(t, testutil.Token(t, bob), "&id_chat_room="+strconv.FormatInt(room.ID, 10))

	// подключение bob рассылается комнате
	online, found := memberOnline(readMembers(t, aliceConn), bob.ID)
	require.True(t, found)
	assert.True(t, online)
	readUntil(t, bobConn, realtime.EventSavedMessages)

	require.NoError(t, bobConn.Close())

	for attempt := 0; ; attempt++ {
		require.Less(t, attempt, 10, "no members list with bob offline")
		online, found = memberOnline(readMembers(t, aliceConn), bob.ID)
		require.True(t, found)
		if !online {
			break
		}
	}
	assert.False(t, ts.store.IsOnline(bob.ID))
}
