package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chat_room/internal/config"
	"chat_room/internal/domain"
	"chat_room/internal/service"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/gorilla/websocket"
)

// maxMalformedFrames подряд идущих нечитаемых кадров закрывают соединение
const maxMalformedFrames = 3

// Gateway связывает сессии, Hub и сервисы чата. События одного соединения
// обрабатываются строго по одному, в порядке поступления.
type Gateway struct {
	hub      *Hub
	registry *Registry
	auth     service.AuthService
	users    service.UserService
	rooms    service.RoomService
	chat     service.ChatService
	history  service.HistoryService
	limiter  service.RateLimitService
	cfg      config.ChatConfig
	log      logger.Logger
	handlers map[string]handlerFunc
}

func NewGateway(hub *Hub, registry *Registry, services *service.Services, cfg config.ChatConfig, log logger.Logger) *Gateway {
	g := &Gateway{
		hub:      hub,
		registry: registry,
		auth:     services.Auth,
		users:    services.User,
		rooms:    services.Room,
		chat:     services.Chat,
		history:  services.History,
		limiter:  services.RateLimit,
		cfg:      cfg,
		log:      log,
	}

	g.handlers = map[string]handlerFunc{
		EventJoinChat:         bind(g.handleJoin),
		EventEnterChat:        bind(g.handleEnter),
		EventLeaveChat:        bind(g.handleLeave),
		EventMessage:          bind(g.handleMessage),
		EventEditMessage:      bind(g.handleEdit),
		EventDeleteMessage:    bind(g.handleDelete),
		EventLoadMoreMessages: bind(g.handleLoadMore),
	}

	return g
}

// Authenticate открывает сессию и проверяет токен рукопожатия. При ошибке
// сессия сразу уходит в Disconnected и удаляется из Registry.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*Session, error) {
	sess := g.registry.Open()
	if err := sess.BeginAuthentication(); err != nil {
		g.Discard(sess)
		return nil, apperrors.System(err, "")
	}

	user, err := g.auth.ValidateToken(ctx, token)
	if err != nil {
		g.Discard(sess)
		return nil, err
	}

	if err := sess.Authenticate(user); err != nil {
		g.Discard(sess)
		return nil, apperrors.System(err, "")
	}

	return sess, nil
}

// Discard закрывает сессию, до которой не дошел Serve
func (g *Gateway) Discard(sess *Session) {
	sess.Disconnect()
	g.registry.Remove(sess.ID())
}

// Serve блокируется до закрытия соединения. autoRoomID > 0 - комната из
// рукопожатия, в которую соединение входит как по enter_chat.
func (g *Gateway) Serve(conn *websocket.Conn, sess *Session, autoRoomID int64) {
	client := newClient(sess.ID(), conn, g.cfg.SendBufferSize, g.log)
	sess.attach(client)
	go client.writePump(g.cfg.WriteWait, g.cfg.PingPeriod())

	g.onConnect(sess, autoRoomID)
	g.readLoop(conn, sess)
	g.onDisconnect(sess)
}

func (g *Gateway) readLoop(conn *websocket.Conn, sess *Session) {
	client := sess.Client()

	conn.SetReadLimit(g.cfg.MaxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	malformed := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug("Websocket read failed", "connection_id", sess.ID().String(), "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			malformed++
			g.emitError(client, "", apperrors.Invalid("malformed frame"))
			if malformed >= maxMalformedFrames {
				g.log.Warn("Too many malformed frames, closing connection", "connection_id", sess.ID().String())
				return
			}
			continue
		}
		malformed = 0

		g.dispatch(sess, env)

		select {
		case <-client.Done():
			return
		default:
		}
	}
}

func (g *Gateway) dispatch(sess *Session, env Envelope) {
	client := sess.Client()

	handler, ok := g.handlers[env.Event]
	if !ok {
		g.emitError(client, env.Event, apperrors.Invalid(fmt.Sprintf("unknown event %q", env.Event)))
		return
	}

	user, err := sess.User()
	if err != nil {
		g.emitError(client, env.Event, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.EventTimeout)
	defer cancel()

	if err := g.checkRate(ctx, user); err != nil {
		g.emitError(client, env.Event, err)
		return
	}

	if err := handler(ctx, sess, user, env.Data); err != nil {
		g.emitError(client, env.Event, err)
	}
}

func (g *Gateway) checkRate(ctx context.Context, user *domain.User) error {
	key := domain.RateLimitKey(domain.RateLimitScopeUser, user.ID)
	allowed, err := g.limiter.Allow(ctx, key, g.cfg.RateLimit, g.cfg.RateWindow)
	if err != nil {
		// Redis недоступен - не блокируем чат
		g.log.Warn("Rate limit check failed", "user_id", user.ID, "error", err)
		return nil
	}
	if !allowed {
		return apperrors.RateLimited()
	}
	return nil
}

func (g *Gateway) emitError(client *Client, event string, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindSystem {
		g.log.Error("Chat event failed", "event", event, "connection_id", client.ID().String(), "error", err)
	} else {
		g.log.Debug("Chat event rejected", "event", event, "code", kind, "error", err)
	}

	payload := ErrorPayload{Event: event, Code: kind, Message: apperrors.PublicMessage(err)}
	if emitErr := g.hub.EmitTo(client, EventError, payload); emitErr != nil {
		g.log.Debug("Failed to deliver error event", "error", emitErr)
	}
}

func (g *Gateway) onConnect(sess *Session, autoRoomID int64) {
	user, err := sess.User()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.EventTimeout)
	defer cancel()

	g.log.Info("User connected", "user_id", user.ID, "connection_id", sess.ID().String())

	if err := g.users.SetOnline(ctx, user.ID, true); err != nil {
		g.log.Warn("Failed to mark user online", "user_id", user.ID, "error", err)
	}
	g.broadcastPresence(ctx, user.ID)

	if autoRoomID > 0 {
		if err := g.handleEnter(ctx, sess, user, RoomPayload{RoomID: autoRoomID}); err != nil {
			g.emitError(sess.Client(), EventEnterChat, err)
		}
	}
}

// onDisconnect выполняется при любом закрытии соединения. Членство в комнатах
// сохраняется, рассылка присутствия - best effort.
func (g *Gateway) onDisconnect(sess *Session) {
	client := sess.Client()
	user, first := sess.Disconnect()
	if !first {
		return
	}

	client.Close()
	g.hub.Remove(client)
	g.registry.Remove(sess.ID())

	if user == nil {
		return
	}
	g.log.Info("User disconnected", "user_id", user.ID, "connection_id", sess.ID().String())

	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.EventTimeout)
	defer cancel()

	// Другие вкладки того же пользователя еще онлайн
	if g.registry.UserConnections(user.ID) > 0 {
		return
	}

	if err := g.users.SetOnline(ctx, user.ID, false); err != nil {
		g.log.Warn("Failed to mark user offline", "user_id", user.ID, "error", err)
	}

	// Новая вкладка могла подключиться между проверкой и записью
	if g.registry.UserConnections(user.ID) > 0 {
		if err := g.users.SetOnline(ctx, user.ID, true); err != nil {
			g.log.Warn("Failed to restore online status", "user_id", user.ID, "error", err)
		}
		return
	}
	g.broadcastPresence(ctx, user.ID)
}

// broadcastPresence рассылает актуальные списки участников во все комнаты пользователя
func (g *Gateway) broadcastPresence(ctx context.Context, userID int64) {
	rooms, err := g.rooms.GetUserRooms(ctx, userID)
	if err != nil {
		g.log.Warn("Failed to load user rooms for presence", "user_id", userID, "error", err)
		return
	}

	for _, room := range rooms {
		if _, err := g.hub.Broadcast(room.ID, EventMembersList, MembersListPayload{Members: room.Members}); err != nil {
			g.log.Warn("Failed to broadcast members list", "room_id", room.ID, "error", err)
		}
	}
}

// Shutdown закрывает все соединения. http.Server.Shutdown не трогает
// захваченные (hijacked) websocket соединения.
func (g *Gateway) Shutdown() {
	for _, sess := range g.registry.Sessions() {
		if client := sess.Client(); client != nil {
			client.Close()
		}
	}
}
