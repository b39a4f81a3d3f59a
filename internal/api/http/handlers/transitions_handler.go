package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/cassette-service/internal/api/dto"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/transition"
	apperrors "github.com/spec-kit/cassette-service/pkg/util/errorutil"
)

// TransitionsHandler exposes the state machines as a read-only API.
type TransitionsHandler struct{}

// NewTransitionsHandler constructs handler.
func NewTransitionsHandler() *TransitionsHandler {
	return &TransitionsHandler{}
}

// Allowed GET /transitions/:kind/:state.
func (h *TransitionsHandler) Allowed(c *fiber.Ctx) error {
	kind, err := parseKind(c.Params("kind"))
	if err != nil {
		return err
	}
	state := strings.ToUpper(c.Params("state"))
	if err := requireKnownState(kind, state); err != nil {
		return err
	}
	allowed, err := transition.AllowedNextStates(kind, state)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AllowedStatesResponse{
		Kind:     string(kind),
		State:    state,
		Allowed:  allowed,
		Terminal: len(allowed) == 0,
	}})
}

// Validate POST /transitions/validate. An illegal change answers 422 with the
// allowed states in the error details.
func (h *TransitionsHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidateTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return err
	}
	current := strings.ToUpper(strings.TrimSpace(req.Current))
	target := strings.ToUpper(strings.TrimSpace(req.Target))
	if current == "" || target == "" {
		return apperrors.NewValidationError("current and target required", nil)
	}
	if err := transition.ValidateTransition(kind, current, target, guardContext(req.Context)); err != nil {
		return err
	}
	allowed, err := transition.AllowedNextStates(kind, current)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"valid": true, "allowed": allowed}})
}

func parseKind(raw string) (transition.Kind, error) {
	kind, ok := transition.ParseKind(raw)
	if !ok {
		return "", apperrors.NewValidationError("unknown kind", map[string]any{"kind": raw, "kinds": transition.Kinds()})
	}
	return kind, nil
}

func guardContext(in dto.TransitionContext) transition.Context {
	var location *domain.RepairLocation
	if in.RepairLocation != nil {
		l := domain.RepairLocation(strings.ToUpper(*in.RepairLocation))
		location = &l
	}
	qc := domain.QCFromBool(in.QCPassed)
	return transition.Context{
		Ticket: transition.TicketContext{
			RepairLocation:      location,
			HasDelivery:         in.HasDelivery,
			HasReturn:           in.HasReturn,
			AllRepairsCompleted: in.AllRepairsCompleted,
		},
		Cassette: transition.CassetteContext{
			HasActiveTicket: in.HasActiveTicket,
			QC:              qc,
			IsReplacement:   in.IsReplacement,
		},
		Repair: transition.RepairContext{
			HasRepairAction: in.HasRepairAction,
			QC:              qc,
		},
	}
}
