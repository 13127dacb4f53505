package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/auth"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
)

// Ключи gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextSystemKey = "system"
)

// SystemTokenHeader: заголовок внутренних вызовов (платёжный сервис).
const SystemTokenHeader = "X-Internal-Token"

// AuthMiddleware проверяет JWT access токен и кладёт claims в контекст запроса,
// чтобы флаг медиатора из токена был виден движкам.
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Unauthenticated(c, "требуется авторизация")
			return
		}

		claims, err := tokens.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.UserID == uuid.Nil {
			response.Unauthenticated(c, "токен невалиден")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// SystemTokenMiddleware пропускает только внутренние вызовы с общим секретом.
// Пустой секрет отключает внутренние маршруты.
func SystemTokenMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SystemTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.Unauthenticated(c, "внутренний токен невалиден")
			return
		}
		c.Set(ContextSystemKey, true)
		c.Next()
	}
}
