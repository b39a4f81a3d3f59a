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
)

// TicketService coordinates manual ticket workflows.
type TicketService struct {
	store  *repository.Store
	tx     repository.Transactor
	logger *zap.Logger
	now    func() time.Time
	events publisher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      *repository.Store
	Transactor repository.Transactor
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := orDefault(deps.Logger)
	now := orClock(deps.Clock)
	return &TicketService{
		store:  deps.Store,
		tx:     deps.Transactor,
		logger: logger,
		now:    now,
		events: publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// GetTicket loads a ticket with its cassette associations.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.store.Tickets.GetWithChildren(ctx, ticketID)
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.store.Tickets.GetWithChildren(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.store.History.ListByTicket(ctx, ticketID)
}

// UpdateStatus applies a caller-requested transition. An illegal transition
// is returned as *transition.InvalidTransitionError and nothing is written.
func (s *TicketService) UpdateStatus(ctx context.Context, actor Actor, ticketID string, target domain.TicketStatus, comment string) (*domain.Ticket, error) {
	var (
		updated *domain.Ticket
		old     domain.TicketStatus
	)
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		ticket, err := store.Tickets.GetWithChildren(ctx, ticketID)
		if err != nil {
			return err
		}
		old = ticket.Status

		guardCtx, err := s.guardContext(ctx, store, ticket, target)
		if err != nil {
			return err
		}
		if err := transition.Ticket.Validate(ticket.Status, target, guardCtx); err != nil {
			return err
		}

		if err := store.Tickets.UpdateStatus(ctx, ticket.ID, ticketStatusUpdate(ticket.Status, target, s.now())); err != nil {
			return err
		}
		entry := historyEntry(actor, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": ticket.Status},
			map[string]any{"status": target, "comment": strings.TrimSpace(comment)},
		)
		if err := store.History.Create(ctx, entry); err != nil {
			return err
		}
		updated, err = store.Tickets.GetWithChildren(ctx, ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", updated.ID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(updated.Status)))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		EntityID: updated.ID,
		Actor:    actor.event(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(old),
			NewStatus: string(updated.Status),
			Comment:   strings.TrimSpace(comment),
		},
	})
	return updated, nil
}

// guardContext collects the facts the ticket guard needs for target. Repair
// completion is only computed when it matters.
func (s *TicketService) guardContext(ctx context.Context, store *repository.Store, ticket *domain.Ticket, target domain.TicketStatus) (transition.TicketContext, error) {
	guardCtx := transition.TicketContext{
		HasDelivery:    ticket.Delivery != nil,
		HasReturn:      ticket.Return != nil,
		RepairLocation: ticket.RepairLocation,
	}
	if target != domain.TicketStatusResolved {
		return guardCtx, nil
	}
	cassettes := ticket.Cassettes()
	if len(cassettes) == 0 {
		return guardCtx, nil
	}
	from := ticket.ScopeStart()
	var createdFrom *time.Time
	if !from.IsZero() {
		createdFrom = &from
	}
	repairs, err := store.Repairs.ListByCassettes(ctx, cassetteIDs(cassettes), createdFrom)
	if err != nil {
		return guardCtx, fmt.Errorf("load repairs for ticket %s: %w", ticket.ID, err)
	}
	completed := aggregate.Completion(ticket.ID, cassettes, aggregate.InScope(repairs, from)).AllCompleted
	guardCtx.AllRepairsCompleted = &completed
	return guardCtx, nil
}
