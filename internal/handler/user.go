package handler

import (
	"net/http"

	"chat_room/internal/service"
	"chat_room/pkg/logger"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	roomService service.RoomService
	log         logger.Logger
}

func NewUserHandler(userService service.UserService, roomService service.RoomService, log logger.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		roomService: roomService,
		log:         log,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetMyRooms - то же, что user_rooms_list по websocket
func (h *UserHandler) GetMyRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rooms, err := h.roomService.GetUserRooms(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func currentUserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get("user_id")
	userID, ok := value.(int64)
	if !exists || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return userID, true
}
