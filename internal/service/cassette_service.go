package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/aggregate"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/transition"
	apperrors "github.com/spec-kit/cassette-service/pkg/util/errorutil"
)

// activeTicketStatuses are the ticket states that still own a cassette.
var activeTicketStatuses = []domain.TicketStatus{
	domain.TicketStatusOpen,
	domain.TicketStatusPendingApproval,
	domain.TicketStatusApprovedOnSite,
	domain.TicketStatusInDelivery,
	domain.TicketStatusReceived,
	domain.TicketStatusInProgress,
	domain.TicketStatusResolved,
}

// CassetteService coordinates cassette lifecycle workflows.
type CassetteService struct {
	store  *repository.Store
	tx     repository.Transactor
	logger *zap.Logger
	now    func() time.Time
	events publisher
}

// CassetteDependencies bundles collaborators for the cassette service.
type CassetteDependencies struct {
	Store      *repository.Store
	Transactor repository.Transactor
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CassetteTransitionInput carries optional facts for a manual cassette change.
// A nil QCPassed falls back to the latest repair ticket of the cassette.
type CassetteTransitionInput struct {
	QCPassed *bool
}

// ReplacementInput requests a replacement for one scrapped cassette.
type ReplacementInput struct {
	CassetteID      string
	NewSerialNumber string
}

// Replacement pairs a scrapped cassette with the cassette that replaces it.
type Replacement struct {
	Original    domain.Cassette `json:"original"`
	Replacement domain.Cassette `json:"replacement"`
}

// NewCassetteService constructs the service.
func NewCassetteService(deps CassetteDependencies) *CassetteService {
	logger := orDefault(deps.Logger)
	now := orClock(deps.Clock)
	return &CassetteService{
		store:  deps.Store,
		tx:     deps.Transactor,
		logger: logger,
		now:    now,
		events: publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// GetCassette loads a cassette.
func (s *CassetteService) GetCassette(ctx context.Context, cassetteID string) (*domain.Cassette, error) {
	return s.store.Cassettes.GetByID(ctx, cassetteID)
}

// UpdateStatus applies a manual cassette transition.
func (s *CassetteService) UpdateStatus(ctx context.Context, actor Actor, cassetteID string, target domain.CassetteStatus, input CassetteTransitionInput) (*domain.Cassette, error) {
	var (
		updated *domain.Cassette
		old     domain.CassetteStatus
	)
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		cassette, err := store.Cassettes.GetByID(ctx, cassetteID)
		if err != nil {
			return err
		}
		old = cassette.Status

		guardCtx, err := s.guardContext(ctx, store, cassette, input)
		if err != nil {
			return err
		}
		if err := transition.Cassette.Validate(cassette.Status, target, guardCtx); err != nil {
			return err
		}
		if err := store.Cassettes.UpdateStatus(ctx, cassette.ID, target, cassette.Status); err != nil {
			return err
		}
		updated, err = store.Cassettes.GetByID(ctx, cassette.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("cassette status changed",
		zap.String("cassette_id", updated.ID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(updated.Status)))
	s.publishStatusChanged(ctx, actor, "", updated.ID, old, updated.Status)
	return updated, nil
}

func (s *CassetteService) guardContext(ctx context.Context, store *repository.Store, cassette *domain.Cassette, input CassetteTransitionInput) (transition.CassetteContext, error) {
	active, err := store.Tickets.ListByCassette(ctx, cassette.ID, activeTicketStatuses)
	if err != nil {
		return transition.CassetteContext{}, fmt.Errorf("list tickets for cassette %s: %w", cassette.ID, err)
	}
	guardCtx := transition.CassetteContext{HasActiveTicket: len(active) > 0}
	if input.QCPassed != nil {
		guardCtx.QC = domain.QCFromBool(input.QCPassed)
		return guardCtx, nil
	}
	repairs, err := store.Repairs.ListByCassettes(ctx, []string{cassette.ID}, nil)
	if err != nil {
		return guardCtx, fmt.Errorf("load repairs for cassette %s: %w", cassette.ID, err)
	}
	if latest, ok := aggregate.LatestRepairs(repairs)[cassette.ID]; ok {
		guardCtx.QC = latest.QC()
	}
	return guardCtx, nil
}

// PickupReadiness reports whether the ticket's cassettes can leave the repair center.
func (s *CassetteService) PickupReadiness(ctx context.Context, ticketID string) (aggregate.PickupReadiness, error) {
	ticket, err := s.store.Tickets.GetWithChildren(ctx, ticketID)
	if err != nil {
		return aggregate.PickupReadiness{}, err
	}
	return aggregate.Pickup(ticket.Cassettes()), nil
}

// ConfirmPickup moves every ready cassette into transit back to the operator.
// Scrapped cassettes stay behind for disposal. Nothing is written unless the
// whole ticket is ready.
func (s *CassetteService) ConfirmPickup(ctx context.Context, actor Actor, ticketID string) (aggregate.PickupReadiness, error) {
	var readiness aggregate.PickupReadiness
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		ticket, err := store.Tickets.GetWithChildren(ctx, ticketID)
		if err != nil {
			return err
		}
		readiness = aggregate.Pickup(ticket.Cassettes())
		if !readiness.CanPickup {
			return apperrors.NewUnprocessable("PICKUP_NOT_READY", readiness.Reason, map[string]any{
				"ticket_id": ticket.ID,
				"blocking":  serials(readiness.Blocking),
			})
		}
		if readiness.ReadyCount == 0 {
			return apperrors.NewUnprocessable("NOTHING_TO_PICKUP", "no cassette is ready for pickup", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		for _, c := range readiness.ToPickup {
			if err := s.move(ctx, store, c, domain.CassetteStatusInTransitToPengelola, transition.CassetteContext{}); err != nil {
				return err
			}
		}
		entry := historyEntry(actor, ticket.ID, domain.ChangeTypeCassettePickup, nil, map[string]any{
			"picked_up": serials(readiness.ToPickup),
			"disposed":  serials(readiness.ToDispose),
		})
		return store.History.Create(ctx, entry)
	})
	if err != nil {
		return readiness, err
	}
	for _, c := range readiness.ToPickup {
		s.publishStatusChanged(ctx, actor, ticketID, c.ID, c.Status, domain.CassetteStatusInTransitToPengelola)
	}
	s.logger.Info("cassette pickup confirmed",
		zap.String("ticket_id", ticketID),
		zap.Int("picked_up", readiness.ReadyCount),
		zap.Int("disposed", readiness.ScrappedCount))
	return readiness, nil
}

// ReceiveReturn marks every in-transit cassette of the ticket as back in
// service and stamps the return as received.
func (s *CassetteService) ReceiveReturn(ctx context.Context, actor Actor, ticketID string) (aggregate.ReturnReceiptReadiness, error) {
	var readiness aggregate.ReturnReceiptReadiness
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		ticket, err := store.Tickets.GetWithChildren(ctx, ticketID)
		if err != nil {
			return err
		}
		readiness = aggregate.ReturnReceipt(ticket.Cassettes())
		if !readiness.CanReceive {
			return apperrors.NewUnprocessable("NOTHING_TO_RECEIVE", "no cassette is in transit to the operator", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		for _, c := range readiness.Candidates {
			if err := s.move(ctx, store, c, domain.CassetteStatusOK, transition.CassetteContext{}); err != nil {
				return err
			}
		}
		if ticket.Return != nil {
			if err := store.Tickets.MarkReturnReceived(ctx, ticket.ID, s.now()); err != nil {
				return err
			}
		}
		entry := historyEntry(actor, ticket.ID, domain.ChangeTypeCassetteReturn, nil, map[string]any{
			"received": serials(readiness.Candidates),
		})
		return store.History.Create(ctx, entry)
	})
	if err != nil {
		return readiness, err
	}
	for _, c := range readiness.Candidates {
		s.publishStatusChanged(ctx, actor, ticketID, c.ID, c.Status, domain.CassetteStatusOK)
	}
	return readiness, nil
}

// ReplaceCassettes issues new cassettes for scrapped ones on the ticket. The
// whole request is validated before anything is written.
func (s *CassetteService) ReplaceCassettes(ctx context.Context, actor Actor, ticketID string, inputs []ReplacementInput) ([]Replacement, error) {
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("at least one cassette is required", nil)
	}
	var created []Replacement
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		ticket, err := store.Tickets.GetWithChildren(ctx, ticketID)
		if err != nil {
			return err
		}
		owned := make(map[string]domain.Cassette)
		for _, c := range ticket.Cassettes() {
			owned[c.ID] = c
		}

		requests := make([]aggregate.ReplacementRequest, 0, len(inputs))
		seen := make(map[string]bool, len(inputs))
		for _, in := range inputs {
			if seen[in.CassetteID] {
				return apperrors.NewValidationError("cassette is listed more than once", map[string]any{
					"ticket_id":   ticket.ID,
					"cassette_id": in.CassetteID,
				})
			}
			seen[in.CassetteID] = true
			c, ok := owned[in.CassetteID]
			if !ok {
				return apperrors.NewValidationError("cassette is not part of the ticket", map[string]any{
					"ticket_id":   ticket.ID,
					"cassette_id": in.CassetteID,
				})
			}
			requests = append(requests, aggregate.ReplacementRequest{Cassette: c, RequestReplacement: true})
		}
		if err := aggregate.ValidateReplacements(requests); err != nil {
			return err
		}

		for i, req := range requests {
			if err := transition.Cassette.Validate(req.Cassette.Status, domain.CassetteStatusOK, transition.CassetteContext{IsReplacement: true}); err != nil {
				return err
			}
			serial := strings.TrimSpace(inputs[i].NewSerialNumber)
			if serial == "" {
				serial = req.Cassette.SerialNumber + "-R"
			}
			replacement, err := store.Cassettes.CreateReplacement(ctx, req.Cassette, ticket.ID, serial)
			if err != nil {
				return err
			}
			created = append(created, Replacement{Original: req.Cassette, Replacement: *replacement})
		}

		replaced := make([]map[string]any, 0, len(created))
		for _, r := range created {
			replaced = append(replaced, map[string]any{
				"original":    r.Original.SerialNumber,
				"replacement": r.Replacement.SerialNumber,
			})
		}
		entry := historyEntry(actor, ticket.ID, domain.ChangeTypeReplacement, nil, map[string]any{"replaced": replaced})
		return store.History.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range created {
		s.events.publish(ctx, events.Event{
			Type:     events.EventCassetteReplaced,
			TicketID: ticketID,
			EntityID: r.Original.ID,
			Actor:    actor.event(),
			Payload: events.CassetteReplacedPayload{
				OriginalID:    r.Original.ID,
				ReplacementID: r.Replacement.ID,
				SerialNumber:  r.Replacement.SerialNumber,
			},
		})
	}
	return created, nil
}

func (s *CassetteService) move(ctx context.Context, store *repository.Store, c domain.Cassette, target domain.CassetteStatus, guardCtx transition.CassetteContext) error {
	if err := transition.Cassette.Validate(c.Status, target, guardCtx); err != nil {
		return err
	}
	return store.Cassettes.UpdateStatus(ctx, c.ID, target, c.Status)
}

func (s *CassetteService) publishStatusChanged(ctx context.Context, actor Actor, ticketID, cassetteID string, old, current domain.CassetteStatus) {
	s.events.publish(ctx, events.Event{
		Type:     events.EventCassetteStatusChanged,
		TicketID: ticketID,
		EntityID: cassetteID,
		Actor:    actor.event(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(old),
			NewStatus: string(current),
		},
	})
}
