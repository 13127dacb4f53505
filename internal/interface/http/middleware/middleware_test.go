package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/auth"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/middleware"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("middleware-test-secret-0123456789", time.Hour)
	userID := uuid.New()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.AuthMiddleware(tokens))
	r.GET("/me", func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c.Request.Context())
		require.True(t, ok)
		assert.True(t, claims.IsMediator)
		assert.Equal(t, userID, c.MustGet(middleware.ContextUserIDKey))
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	token, err := tokens.Generate(userID, true)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestSystemTokenMiddleware(t *testing.T) {
	r := newEngine(middleware.SystemTokenMiddleware("s3cret"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.SystemTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.SystemTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	// Пустой секрет закрывает маршрут полностью.
	closed := newEngine(middleware.SystemTokenMiddleware(""))
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.SystemTokenHeader, "")
	assert.Equal(t, http.StatusUnauthorized, serve(closed, req).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine(middleware.CORSMiddleware([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(r, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	store, err := middleware.NewLimiterStore(nil)
	require.NoError(t, err)
	r := newEngine(middleware.RateLimitMiddleware(store, 2, time.Minute))

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items/:id", middleware.UUIDValidator("id"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusBadRequest, serve(r, httptest.NewRequest(http.MethodGet, "/items/abc", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString(), nil)).Code)
}
