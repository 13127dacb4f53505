package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/auth"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
	"github.com/ignatzorin/marketplace-backend/internal/ws"
)

// WSHandler устанавливает WebSocket соединения для доставки событий.
type WSHandler struct {
	hub      *ws.Hub
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader
}

// NewWSHandler: checkOrigin может быть nil, тогда принимаются любые источники.
func NewWSHandler(hub *ws.Hub, tokens *auth.TokenManager, checkOrigin func(r *http.Request) bool) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		response.Unauthenticated(c, "access токен обязателен")
		return
	}

	claims, err := h.tokens.ParseAccess(rawToken)
	if err != nil || claims.UserID == uuid.Nil {
		response.Unauthenticated(c, "невалидный access токен")
		return
	}

	// Upgrade сам пишет ответ об ошибке.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ws.NewClient(conn, h.hub, claims.UserID).Run(c.Request.Context())
}
