package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/marketplace-backend/internal/interface/http/middleware"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// validatable: запрос с дополнительной проверкой полей после биндинга.
type validatable interface {
	Validate() error
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		response.Unauthenticated(c, "требуется авторизация")
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		response.Unauthenticated(c, "требуется авторизация")
		return uuid.Nil, false
	}
	return userID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "некорректный идентификатор "+name)
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON разбирает тело и проверяет поля; при ошибке ответ уже отправлен.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "некорректные данные запроса")
		return false
	}
	if v, ok := req.(validatable); ok {
		if err := v.Validate(); err != nil {
			response.Error(c, err)
			return false
		}
	}
	return true
}

func pagination(c *gin.Context) (int, int) {
	limit := parseIntQuery(c, "limit", defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return defaultValue
	}
	return value
}
