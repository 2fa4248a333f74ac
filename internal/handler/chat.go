package handler

import (
	"net/http"
	"strconv"

	"chat_room/internal/service"
	"chat_room/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	historyService service.HistoryService
	log            logger.Logger
}

func NewChatHandler(historyService service.HistoryService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		historyService: historyService,
		log:            log,
	}
}

// GetMessages - та же история, что и по websocket: page=0 - последние сообщения
func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || roomID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	result, err := h.historyService.GetMessagesPage(c.Request.Context(), roomID, page)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
