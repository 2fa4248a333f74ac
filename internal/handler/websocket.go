package handler

import (
	"net/http"
	"strconv"
	"strings"

	"chat_room/internal/config"
	"chat_room/internal/realtime"
	apperrors "chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	gateway  *realtime.Gateway
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(gateway *realtime.Gateway, cfg config.ChatConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		log: log,
	}
}

// originChecker без списка разрешает любой origin (режим разработки)
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimSpace(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleChat проверяет токен до upgrade: без валидного токена соединение
// не устанавливается и клиент получает 401
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	token := extractToken(c.Request)

	sess, err := h.gateway.Authenticate(c.Request.Context(), token)
	if err != nil {
		status := apperrors.HTTPStatusFromError(err)
		if status == http.StatusInternalServerError {
			h.log.Error("Websocket authentication failed", "error", err)
		}
		c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
		return
	}

	var autoRoomID int64
	if raw := c.Query("id_chat_room"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			autoRoomID = id
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		h.gateway.Discard(sess)
		return
	}

	h.gateway.Serve(conn, sess, autoRoomID)
}

// extractToken: Authorization: Bearer, заголовок token или ?token=
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}
