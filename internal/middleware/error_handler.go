package middleware

import (
	"chat_room/pkg/errors"
	"chat_room/pkg/logger"

	"github.com/gin-gonic/gin"
)

func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем есть ли ошибки
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if errors.KindOf(err) == errors.KindSystem {
			log.Error("Request failed", "path", c.FullPath(), "error", err)
		}

		c.JSON(errors.HTTPStatusFromError(err), gin.H{
			"error": errors.PublicMessage(err),
			"code":  errors.KindOf(err),
		})
	}
}
