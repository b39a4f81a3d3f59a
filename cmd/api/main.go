package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/cassette-service/internal/api/http"
	"github.com/spec-kit/cassette-service/internal/api/http/handlers"
	"github.com/spec-kit/cassette-service/internal/auth"
	"github.com/spec-kit/cassette-service/internal/bootstrap"
	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/worker"
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

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize services", zap.Error(err))
	}
	defer container.Close()

	worker.StartNotificationWorker(container.Notifications, logger)

	var locker worker.Locker
	if container.Locker != nil {
		locker = container.Locker
	}
	go worker.NewReconcileWorker(container.Reconciler, locker, cfg.Reconcile, logger).Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if container.Postgres.PoolHandle() != nil {
		deps["postgres"] = container.Postgres
	}
	if container.Redis != nil {
		deps["redis"] = container.Redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Metrics:        handlers.NewMetricsHandler(container.Metrics),
		Transitions:    handlers.NewTransitionsHandler(),
		Tickets:        handlers.NewTicketsHandler(container.Tickets, container.Cassettes, container.Reconciler),
		Cassettes:      handlers.NewCassettesHandler(container.Cassettes, container.Repairs),
		Maintenance:    handlers.NewMaintenanceHandler(container.Maintenance),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
