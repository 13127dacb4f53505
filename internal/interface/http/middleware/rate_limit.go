package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/ignatzorin/marketplace-backend/internal/interface/http/response"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
)

const rateLimitPrefix = "marketplace:ratelimit"

// NewLimiterStore выбирает хранилище счётчиков: Redis (общий для всех экземпляров) или память процесса.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: limiter.DefaultMaxRetry,
	})
}

// RateLimitMiddleware ограничивает число запросов с одного IP.
func RateLimitMiddleware(store limiter.Store, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 30
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})
	log := logger.WithComponent("ratelimit")

	return func(c *gin.Context) {
		state, err := instance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// При ошибке хранилища счётчиков запрос пропускается без ограничения.
			log.WithError(err).Warn("не удалось проверить лимит запросов")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			c.AbortWithStatusJSON(429, response.Response{
				Success: false,
				Error: &response.ErrorInfo{
					Code:    "RATE_LIMITED",
					Message: "слишком много запросов, попробуйте позже",
				},
			})
			return
		}

		c.Next()
	}
}
