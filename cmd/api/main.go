package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/clinic-queue/internal/api/http"
	"github.com/spec-kit/clinic-queue/internal/api/http/handlers"
	"github.com/spec-kit/clinic-queue/internal/auth"
	"github.com/spec-kit/clinic-queue/internal/config"
	"github.com/spec-kit/clinic-queue/internal/events"
	"github.com/spec-kit/clinic-queue/internal/hub"
	"github.com/spec-kit/clinic-queue/internal/observability"
	"github.com/spec-kit/clinic-queue/internal/persistence"
	"github.com/spec-kit/clinic-queue/internal/ratelimit"
	"github.com/spec-kit/clinic-queue/internal/service"
	"github.com/spec-kit/clinic-queue/internal/store"
	memorystore "github.com/spec-kit/clinic-queue/internal/store/memory"
	postgresstore "github.com/spec-kit/clinic-queue/internal/store/postgres"
	"github.com/spec-kit/clinic-queue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var tickets store.TicketStore
	if pool := pg.PoolHandle(); pool != nil {
		tickets = postgresstore.New(pool, cfg.Queue.StoreTimeout())
	} else {
		tickets = memorystore.New()
	}

	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	redisPublisher := events.NewRedisPublisher(redis.ClientHandle(), cfg.Queue.EventChannel)
	publisher := events.Fanout(dispatcher, redisPublisher)

	queueService := service.NewQueueService(service.QueueDependencies{
		Store:     tickets,
		Publisher: publisher,
		Logger:    logger,
		Metrics:   metrics,
		Config:    cfg.Queue,
	})

	boardService := service.NewBoardService(tickets, queueService, redis.ClientHandle(), logger, cfg.Queue)
	boardService.RegisterInvalidation(dispatcher)

	liveHub := hub.New(logger)
	liveHub.RegisterFeed(dispatcher)

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if client := redis.ClientHandle(); client != nil {
		limiter = ratelimit.NewRedisLimiter(client, logger)
	}

	notificationService := service.NewNotificationService(dispatcher, limiter, logger, cfg.Notification, cfg.Queue)
	worker.StartNotificationWorker(notificationService)

	if cfg.Auth.AdminPasscodeHash == "" {
		hashed, err := auth.HashPasscode(cfg.Auth.AdminPasscode, cfg.Auth.BcryptCost)
		if err != nil {
			logger.Fatal("failed to hash admin passcode", zap.Error(err))
		}
		cfg.Auth.AdminPasscodeHash = hashed
	}
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	adminMiddleware := auth.NewAdminMiddleware(tokenManager)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Queue:           handlers.NewQueueHandler(queueService),
		Webhook:         handlers.NewWebhookHandler(queueService, limiter, cfg.Queue),
		Admin:           handlers.NewAdminHandler(queueService, boardService, tokenManager, liveHub, logger, cfg.Auth),
		AdminMiddleware: adminMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
