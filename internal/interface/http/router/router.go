package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/auth"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/handler"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/middleware"
)

// Handlers собирает обработчики, которые регистрирует роутер.
type Handlers struct {
	Transactions *handler.TransactionHandler
	Disputes     *handler.DisputeHandler
	WS           *handler.WSHandler
	Health       *handler.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens *auth.TokenManager, store limiter.Store) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	// Внутренние вызовы платёжного сервиса.
	internal := api.Group("/internal")
	internal.Use(middleware.SystemTokenMiddleware(cfg.InternalAPIToken))
	{
		internal.POST("/transactions/:id/payment-confirmed", middleware.UUIDValidator("id"), h.Transactions.ConfirmPayment)
	}

	limit := middleware.RateLimitMiddleware(store, cfg.RateLimitLimit, cfg.RateLimitPeriod)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		tx := h.Transactions
		protected.POST("/jobs", limit, tx.CreateJob)
		protected.POST("/gig-orders", limit, tx.PlaceGigOrder)

		protected.GET("/jobs/:id/applications", middleware.UUIDValidator("id"), tx.ListApplications)
		protected.POST("/jobs/:id/applications", limit, middleware.UUIDValidator("id"), tx.Apply)
		protected.POST("/applications/:id/accept", limit, middleware.UUIDValidator("id"), tx.AcceptApplication)
		protected.POST("/applications/:id/reject", limit, middleware.UUIDValidator("id"), tx.RejectApplication)

		protected.GET("/transactions", tx.List)
		transactions := protected.Group("/transactions/:id")
		transactions.Use(middleware.UUIDValidator("id"))
		{
			transactions.GET("", tx.Get)
			transactions.POST("/start", limit, tx.StartWork())
			transactions.POST("/request-completion", limit, tx.RequestCompletion())
			transactions.POST("/approve-completion", limit, tx.ApproveCompletion())
			transactions.POST("/reject-completion", limit, tx.RejectCompletion())
			transactions.POST("/cancel", limit, tx.Cancel())
			transactions.PUT("/progress", limit, tx.SetProgress)

			transactions.POST("/milestones", limit, tx.AddMilestone)
			transactions.PUT("/milestones/:milestoneId/status", limit, middleware.UUIDValidator("milestoneId"), tx.UpdateMilestoneStatus)
			transactions.PUT("/milestones/:milestoneId/progress", limit, middleware.UUIDValidator("milestoneId"), tx.UpdateMilestoneProgress)

			transactions.POST("/disputes", limit, h.Disputes.Open)
		}

		d := h.Disputes
		protected.GET("/disputes", d.List)
		protected.GET("/disputes/unassigned", d.ListUnassigned)
		disputes := protected.Group("/disputes/:id")
		disputes.Use(middleware.UUIDValidator("id"))
		{
			disputes.GET("", d.Get)
			disputes.PUT("/mediator", limit, d.AssignMediator)
			disputes.PUT("/status", limit, d.UpdateStatus)
			disputes.POST("/resolve", limit, d.Resolve)
			disputes.POST("/evidence", limit, d.UploadEvidence)
			disputes.POST("/messages", limit, d.PostMessage)
			disputes.GET("/files/*key", d.DownloadFile)
		}
	}

	return r
}
