package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

// RequestLogger пишет строку лога на каждый запрос; ошибки gin.Context попадают в поле errors.
func RequestLogger() gin.HandlerFunc {
	log := logger.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if userID, ok := c.Get(ContextUserIDKey); ok {
			fields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("запрос завершился ошибкой")
		case status >= 400:
			entry.Info("запрос отклонён")
		default:
			entry.Debug("запрос обработан")
		}
	}
}

// Recovery превращает панику обработчика в 500 с телом INTERNAL_ERROR.
func Recovery() gin.HandlerFunc {
	log := logger.WithComponent("http")

	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("паника в обработчике")
		c.AbortWithStatusJSON(500, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "внутренняя ошибка сервера"},
		})
	})
}
