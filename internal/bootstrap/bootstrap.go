// Package bootstrap wires configuration, storage and services into one
// container shared by the HTTP server and the CLI.
package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/config"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/persistence"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/repository/memory"
	"github.com/spec-kit/cassette-service/internal/service"
)

// Container holds the wired services.
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Locker        *persistence.RedisLocker
	Store         *repository.Store
	Transactor    repository.Transactor
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Reconciler    *service.ReconciliationService
	Tickets       *service.TicketService
	Cassettes     *service.CassetteService
	Repairs       *service.RepairService
	Maintenance   *service.MaintenanceService
	Notifications *service.NotificationService
}

// New connects the configured backends and builds every service. Without a
// POSTGRES_DSN the services run over an in-memory store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Postgres:   pg,
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
	}

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		c.Store = repository.NewStore(pool)
		c.Transactor = repository.NewTxManager(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on exit")
		db := memory.New()
		c.Store = db.Store()
		c.Transactor = db
	}

	c.Redis = persistence.NewRedis(ctx, cfg.Redis, logger)
	c.Locker = c.Redis.Locker()

	c.Reconciler = service.NewReconciliationService(service.ReconciliationDependencies{
		Store:      c.Store,
		Transactor: c.Transactor,
		Dispatcher: c.Dispatcher,
		Metrics:    c.Metrics,
		Logger:     logger,
	})
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		Store:      c.Store,
		Transactor: c.Transactor,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
	})
	c.Cassettes = service.NewCassetteService(service.CassetteDependencies{
		Store:      c.Store,
		Transactor: c.Transactor,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
	})
	c.Repairs = service.NewRepairService(service.RepairDependencies{
		Store:      c.Store,
		Transactor: c.Transactor,
		Reconciler: c.Reconciler,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
	})
	c.Maintenance = service.NewMaintenanceService(service.MaintenanceDependencies{
		Store:      c.Store,
		Dispatcher: c.Dispatcher,
		Logger:     logger,
	})
	c.Notifications = service.NewNotificationService(c.Dispatcher, logger, cfg.Notification)
	return c, nil
}

// Close releases backend connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
