package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/aggregate"
	"github.com/spec-kit/cassette-service/internal/api/dto"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/service"
	"github.com/spec-kit/cassette-service/internal/transition"
	apperrors "github.com/spec-kit/cassette-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	cassettes  *service.CassetteService
	reconciler *service.ReconciliationService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, cassettes *service.CassetteService, reconciler *service.ReconciliationService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, cassettes: cassettes, reconciler: reconciler}
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	history, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	req, err := parseStatusRequest(c, transition.KindTicket)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), actor, c.Params("id"), domain.TicketStatus(req.Status), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reconcile POST /tickets/:id/reconcile.
func (h *TicketsHandler) Reconcile(c *fiber.Ctx) error {
	result, err := h.reconciler.ReconcileTicket(c.UserContext(), c.Params("id"), nil)
	if err != nil {
		return err
	}
	if result.Outcome == service.OutcomeTicketNotFound {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": c.Params("id")})
	}
	return c.JSON(fiber.Map{"data": result})
}

// ReconcilePending POST /tickets/reconcile?limit=.
func (h *TicketsHandler) ReconcilePending(c *fiber.Ctx) error {
	batch, err := h.reconciler.ReconcilePending(c.UserContext(), parseInt(c.Query("limit"), service.DefaultBatchLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": batch})
}

// PickupReadiness GET /tickets/:id/pickup-readiness.
func (h *TicketsHandler) PickupReadiness(c *fiber.Ctx) error {
	readiness, err := h.cassettes.PickupReadiness(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pickupResponse(readiness)})
}

// ConfirmPickup POST /tickets/:id/pickup.
func (h *TicketsHandler) ConfirmPickup(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	readiness, err := h.cassettes.ConfirmPickup(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pickupResponse(readiness)})
}

// ReceiveReturn POST /tickets/:id/return-receipt.
func (h *TicketsHandler) ReceiveReturn(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	readiness, err := h.cassettes.ReceiveReturn(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReturnReceiptResponse{
		InTransitCount: readiness.InTransitCount,
		Received:       cassetteResponses(readiness.Candidates),
		Excluded:       cassetteResponses(readiness.Excluded),
	}})
}

// ReplaceCassettes POST /tickets/:id/replacements.
func (h *TicketsHandler) ReplaceCassettes(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReplacementsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	inputs := make([]service.ReplacementInput, 0, len(req.Items))
	for _, item := range req.Items {
		if item.CassetteID == "" {
			return apperrors.NewValidationError("cassette_id required", nil)
		}
		inputs = append(inputs, service.ReplacementInput{CassetteID: item.CassetteID, NewSerialNumber: item.NewSerialNumber})
	}
	created, err := h.cassettes.ReplaceCassettes(c.UserContext(), actor, c.Params("id"), inputs)
	if err != nil {
		return err
	}
	resp := make([]dto.ReplacementResponse, 0, len(created))
	for _, r := range created {
		resp = append(resp, dto.ReplacementResponse{
			Original:    cassetteResponse(r.Original),
			Replacement: cassetteResponse(r.Replacement),
		})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

func pickupResponse(r aggregate.PickupReadiness) dto.PickupReadinessResponse {
	return dto.PickupReadinessResponse{
		CanPickup:        r.CanPickup,
		ReadyCount:       r.ReadyCount,
		ScrappedCount:    r.ScrappedCount,
		OtherStatusCount: r.OtherStatusCount,
		ToPickup:         cassetteResponses(r.ToPickup),
		ToDispose:        cassetteResponses(r.ToDispose),
		Blocking:         cassetteResponses(r.Blocking),
		Reason:           r.Reason,
	}
}
