package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/db"
	"github.com/ignatzorin/marketplace-backend/internal/domain/repository"
	"github.com/ignatzorin/marketplace-backend/internal/goroutine"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/auth"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/events"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/persistence"
	"github.com/ignatzorin/marketplace-backend/internal/infrastructure/storage"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/handler"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/middleware"
	"github.com/ignatzorin/marketplace-backend/internal/interface/http/router"
	"github.com/ignatzorin/marketplace-backend/internal/logger"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/dispute"
	"github.com/ignatzorin/marketplace-backend/internal/usecase/transaction"
	"github.com/ignatzorin/marketplace-backend/internal/ws"
)

// backend: порты хранилища выбранного драйвера.
type backend struct {
	tx           repository.TxManager
	transactions repository.TransactionRepository
	milestones   repository.MilestoneRepository
	applications repository.ApplicationRepository
	disputes     repository.DisputeRepository
	evidence     repository.EvidenceRepository
	messages     repository.MessageRepository
	outbox       repository.OutboxRepository
	identity     repository.IdentityProvider
	outboxOpts   []events.DispatcherOption
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	log := logger.WithComponent("main")

	checks := map[string]handler.HealthCheck{}

	var store backend
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		log.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
		store = memoryBackend(cfg)
	default:
		dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			log.Fatalf("ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
			log.Fatalf("ошибка миграций: %v", err)
		}
		store, err = postgresBackend(ctx, cfg, dbConn)
		if err != nil {
			log.Fatalf("ошибка подготовки хранилища: %v", err)
		}
		checks["database"] = dbConn.PingContext
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("ошибка подключения к redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Errorf("ошибка закрытия redis: %v", err)
			}
		}()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	identity := auth.NewTokenIdentity(store.identity)

	evidenceStorage, err := storage.NewEvidenceStorage(cfg.EvidenceStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("не удалось подготовить хранилище доказательств: %v", err)
	}

	// Вебсокеты и доставка событий из outbox.
	hub := ws.NewHub(ctx)
	goroutine.SafeGo("ws-hub", hub.Run)

	publishers := events.Fanout{events.NewHubPublisher(hub)}
	if redisClient != nil {
		publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.RedisEventsChannel))
	}
	dispatcher := events.NewDispatcher(store.tx, store.outbox, publishers, cfg.OutboxPollInterval, cfg.OutboxBatchSize, store.outboxOpts...)
	goroutine.SafeGoWithContext(ctx, "outbox-dispatcher", dispatcher.Run)

	txDeps := transaction.Dependencies{
		Tx:           store.tx,
		Transactions: store.transactions,
		Milestones:   store.milestones,
		Applications: store.applications,
		Disputes:     store.disputes,
		Outbox:       store.outbox,
		Identity:     identity,
	}
	txSettings := transaction.Settings{
		Policies:          cfg.Policies(),
		FreezeOnDispute:   cfg.FreezeOnDispute,
		ProgressBaseline:  cfg.InProgressBaseline,
		AutoStartOnAccept: cfg.AutoStartOnAccept,
	}
	disputeDeps := dispute.Dependencies{
		Tx:           store.tx,
		Transactions: store.transactions,
		Disputes:     store.disputes,
		Evidence:     store.evidence,
		Messages:     store.messages,
		Outbox:       store.outbox,
		Identity:     identity,
		Blobs:        evidenceStorage,
	}

	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		log.Fatalf("ошибка настройки rate limit: %v", err)
	}

	engine := router.SetupRouter(cfg, router.Handlers{
		Transactions: handler.NewTransactionHandler(txDeps, txSettings),
		Disputes:     handler.NewDisputeHandler(disputeDeps, evidenceStorage, cfg.MaxUploadSizeMB),
		WS:           handler.NewWSHandler(hub, tokenManager, nil),
		Health:       handler.NewHealthHandler(checks),
	}, tokenManager, limiterStore)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("ошибка остановки http сервера: %v", err)
		}
	})

	log.Infof("HTTP сервер запущен на порту %s (хранилище: %s)", cfg.HTTPPort, cfg.StorageDriver)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("сервер завершился с ошибкой: %v", err)
	}
}

func memoryBackend(cfg *config.Config) backend {
	s := memory.NewStore()
	s.GrantMediator(cfg.MediatorIDs...)
	return backend{
		tx:           s,
		transactions: s.Transactions(),
		milestones:   s.Milestones(),
		applications: s.Applications(),
		disputes:     s.Disputes(),
		evidence:     s.Evidence(),
		messages:     s.Messages(),
		outbox:       s.Outbox(),
		identity:     s,
	}
}

func postgresBackend(ctx context.Context, cfg *config.Config, conn *sqlx.DB) (backend, error) {
	mediators := persistence.NewMediatorDirectory(conn)
	if err := mediators.Grant(ctx, cfg.MediatorIDs...); err != nil {
		return backend{}, err
	}
	return backend{
		tx:           persistence.NewTxManager(conn),
		transactions: persistence.NewTransactionRepository(conn),
		milestones:   persistence.NewMilestoneRepository(conn),
		applications: persistence.NewApplicationRepository(conn),
		disputes:     persistence.NewDisputeRepository(conn),
		evidence:     persistence.NewEvidenceRepository(conn),
		messages:     persistence.NewMessageRepository(conn),
		outbox:       persistence.NewOutboxRepository(conn),
		identity:     mediators,
		outboxOpts:   []events.DispatcherOption{events.WithRowLocks()},
	}, nil
}

// safeClose закрывает соединение с базой.
func safeClose(conn *sqlx.DB) {
	if err := conn.Close(); err != nil {
		logger.Log.Errorf("main: ошибка закрытия базы: %v", err)
	}
}
