package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
)

// UUIDValidator проверяет, что параметры пути являются валидными UUID.
// Использование: group.GET("/disputes/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range params {
			if _, err := uuid.Parse(c.Param(name)); err != nil {
				response.BadRequest(c, "параметр "+name+" должен быть валидным UUID")
				return
			}
		}
		c.Next()
	}
}
