package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/api/dto"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/service"
	"github.com/spec-kit/cassette-service/internal/transition"
	apperrors "github.com/spec-kit/cassette-service/pkg/util/errorutil"
)

// CassettesHandler manages cassette and repair ticket endpoints.
type CassettesHandler struct {
	cassettes *service.CassetteService
	repairs   *service.RepairService
}

// NewCassettesHandler constructs handler.
func NewCassettesHandler(cassettes *service.CassetteService, repairs *service.RepairService) *CassettesHandler {
	return &CassettesHandler{cassettes: cassettes, repairs: repairs}
}

// GetCassette GET /cassettes/:id.
func (h *CassettesHandler) GetCassette(c *fiber.Ctx) error {
	cassette, err := h.cassettes.GetCassette(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cassetteResponse(*cassette)})
}

// UpdateCassetteStatus PATCH /cassettes/:id/status.
func (h *CassettesHandler) UpdateCassetteStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CassetteStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	if err := requireKnownState(transition.KindCassette, status); err != nil {
		return err
	}
	cassette, err := h.cassettes.UpdateStatus(c.UserContext(), actor, c.Params("id"), domain.CassetteStatus(status), service.CassetteTransitionInput{
		QCPassed: req.QCPassed,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cassetteResponse(*cassette)})
}

// GetRepair GET /repair-tickets/:id.
func (h *CassettesHandler) GetRepair(c *fiber.Ctx) error {
	repair, err := h.repairs.GetRepair(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": repairResponse(repair)})
}

// UpdateRepairStatus PATCH /repair-tickets/:id/status. The response carries
// the mirrored cassette and every ticket reconciliation the change triggered.
func (h *CassettesHandler) UpdateRepairStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RepairStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	if err := requireKnownState(transition.KindRepairTicket, status); err != nil {
		return err
	}
	result, err := h.repairs.UpdateStatus(c.UserContext(), actor, c.Params("id"), domain.RepairStatus(status), service.RepairTransitionInput{
		RepairAction: req.RepairAction,
		QCPassed:     req.QCPassed,
	})
	if err != nil {
		return err
	}
	resp := dto.RepairUpdateResponse{
		RepairTicket: repairResponse(result.Repair),
		Reconciled:   result.Reconciled,
	}
	if result.Cassette != nil {
		mirrored := cassetteResponse(*result.Cassette)
		resp.Cassette = &mirrored
	}
	if result.Reconciled == nil {
		resp.Reconciled = []service.ReconcileResult{}
	}
	return c.JSON(fiber.Map{"data": resp})
}
