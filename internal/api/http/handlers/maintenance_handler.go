package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/service"
	"github.com/spec-kit/cassette-service/internal/transition"
)

// MaintenanceHandler manages preventive maintenance endpoints.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
}

// NewMaintenanceHandler constructs handler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance}
}

// GetMaintenance GET /maintenance/:id.
func (h *MaintenanceHandler) GetMaintenance(c *fiber.Ctx) error {
	pm, err := h.maintenance.GetMaintenance(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": maintenanceResponse(pm)})
}

// UpdateStatus PATCH /maintenance/:id/status.
func (h *MaintenanceHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	req, err := parseStatusRequest(c, transition.KindMaintenance)
	if err != nil {
		return err
	}
	pm, err := h.maintenance.UpdateStatus(c.UserContext(), actor, c.Params("id"), domain.PMStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": maintenanceResponse(pm)})
}
