package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/api/http/handlers"
	"github.com/spec-kit/cassette-service/internal/auth"
	"github.com/spec-kit/cassette-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Transitions    *handlers.TransitionsHandler
	Tickets        *handlers.TicketsHandler
	Cassettes      *handlers.CassettesHandler
	Maintenance    *handlers.MaintenanceHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. ADMIN passes every role check.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	operator := auth.RequireRole(domain.OrgRolePengelola)
	repairCenter := auth.RequireRole(domain.OrgRoleRepairCenter)
	staff := auth.RequireRole(domain.OrgRolePengelola, domain.OrgRoleRepairCenter)

	api := app.Group("", cfg.AuthMiddleware.Handle)
	api.Get("/metrics", auth.RequireRole(domain.OrgRoleAdmin), cfg.Metrics.Snapshot)

	transitions := api.Group("/transitions", auth.RequireAnyRole())
	transitions.Get("/:kind/:state", cfg.Transitions.Allowed)
	transitions.Post("/validate", cfg.Transitions.Validate)

	tickets := api.Group("/tickets")
	tickets.Post("/reconcile", repairCenter, cfg.Tickets.ReconcilePending)
	tickets.Get("/:id", auth.RequireAnyRole(), cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", auth.RequireAnyRole(), cfg.Tickets.ListHistory)
	tickets.Patch("/:id/status", staff, cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/reconcile", repairCenter, cfg.Tickets.Reconcile)
	tickets.Get("/:id/pickup-readiness", staff, cfg.Tickets.PickupReadiness)
	tickets.Post("/:id/pickup", operator, cfg.Tickets.ConfirmPickup)
	tickets.Post("/:id/return-receipt", operator, cfg.Tickets.ReceiveReturn)
	tickets.Post("/:id/replacements", repairCenter, cfg.Tickets.ReplaceCassettes)

	cassettes := api.Group("/cassettes", staff)
	cassettes.Get("/:id", cfg.Cassettes.GetCassette)
	cassettes.Patch("/:id/status", cfg.Cassettes.UpdateCassetteStatus)

	repairs := api.Group("/repair-tickets", repairCenter)
	repairs.Get("/:id", cfg.Cassettes.GetRepair)
	repairs.Patch("/:id/status", cfg.Cassettes.UpdateRepairStatus)

	maintenance := api.Group("/maintenance", operator)
	maintenance.Get("/:id", cfg.Maintenance.GetMaintenance)
	maintenance.Patch("/:id/status", cfg.Maintenance.UpdateStatus)
}
