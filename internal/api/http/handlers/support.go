package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/api/dto"
	"github.com/spec-kit/cassette-service/internal/auth"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/service"
	"github.com/spec-kit/cassette-service/internal/transition"
	apperrors "github.com/spec-kit/cassette-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	if principal.SubjectType == domain.SubjectTypeSystem {
		actor := service.SystemActor()
		actor.Role = principal.Role
		return actor, nil
	}
	return service.StaffActor(principal.SubjectID, principal.Role), nil
}

func parseStatusRequest(c *fiber.Ctx, kind transition.Kind) (dto.UpdateStatusRequest, error) {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	req.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if req.Status == "" {
		return req, apperrors.NewValidationError("status required", nil)
	}
	return req, requireKnownState(kind, req.Status)
}

// requireKnownState answers 400 for a state the kind's machine does not
// define, before any lookup or transition check.
func requireKnownState(kind transition.Kind, state string) error {
	known, err := transition.Known(kind, state)
	if err != nil {
		return err
	}
	if known {
		return nil
	}
	states, _ := transition.States(kind)
	return apperrors.NewValidationError("unknown state", map[string]any{"kind": kind, "state": state, "states": states})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func cassetteResponse(c domain.Cassette) dto.CassetteResponse {
	return dto.CassetteResponse{
		ID:                  c.ID,
		SerialNumber:        c.SerialNumber,
		Status:              c.Status,
		ReplacementTicketID: c.ReplacementTicketID,
		ReplacedByID:        c.ReplacedByID,
	}
}

func cassetteResponses(cassettes []domain.Cassette) []dto.CassetteResponse {
	resp := make([]dto.CassetteResponse, 0, len(cassettes))
	for _, c := range cassettes {
		resp = append(resp, cassetteResponse(c))
	}
	return resp
}

func ticketResponse(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:             t.ID,
		Number:         t.Number,
		Status:         t.Status,
		RepairLocation: t.RepairLocation,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		ResolvedAt:     t.ResolvedAt,
		HasDelivery:    t.Delivery != nil,
		HasReturn:      t.Return != nil,
		Cassettes:      cassetteResponses(t.Cassettes()),
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func repairResponse(r *domain.RepairTicket) dto.RepairTicketResponse {
	return dto.RepairTicketResponse{
		ID:           r.ID,
		CassetteID:   r.CassetteID,
		Status:       r.Status,
		RepairAction: r.RepairAction,
		QCPassed:     r.QCPassed,
		CreatedAt:    r.CreatedAt,
		CompletedAt:  r.CompletedAt,
	}
}

func maintenanceResponse(pm *domain.PreventiveMaintenance) dto.MaintenanceResponse {
	return dto.MaintenanceResponse{
		ID:          pm.ID,
		Number:      pm.Number,
		Status:      pm.Status,
		ScheduledAt: pm.ScheduledAt,
		CompletedAt: pm.CompletedAt,
	}
}
