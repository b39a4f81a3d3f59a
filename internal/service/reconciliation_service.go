package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/aggregate"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/transition"
)

// DefaultBatchLimit caps a pending sweep when the caller passes no limit.
const DefaultBatchLimit = 50

// ReconcileOutcome classifies a single reconciliation attempt.
type ReconcileOutcome string

const (
	OutcomeUpdated        ReconcileOutcome = "updated"
	OutcomeUnchanged      ReconcileOutcome = "unchanged"
	OutcomeTicketNotFound ReconcileOutcome = "ticket_not_found"
	OutcomeNoCassettes    ReconcileOutcome = "no_cassettes"
	OutcomeRejected       ReconcileOutcome = "rejected"
	OutcomeConflict       ReconcileOutcome = "conflict"
)

// ReconcileResult reports what reconciliation did to one ticket.
type ReconcileResult struct {
	TicketID  string              `json:"ticket_id"`
	Updated   bool                `json:"updated"`
	OldStatus domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus domain.TicketStatus `json:"new_status,omitempty"`
	Reason    string              `json:"reason"`
	Outcome   ReconcileOutcome    `json:"outcome"`
	Completed int                 `json:"completed_repairs"`
	Total     int                 `json:"total_cassettes"`
}

// BatchResult summarizes a pending sweep. Synced counts tickets whose status
// changed; Errors counts tickets that failed on infrastructure errors.
type BatchResult struct {
	Scanned int `json:"scanned"`
	Synced  int `json:"synced"`
	Errors  int `json:"errors"`
}

// reconcilableStatuses are the ticket states whose status follows repair progress.
var reconcilableStatuses = []domain.TicketStatus{
	domain.TicketStatusReceived,
	domain.TicketStatusInProgress,
	domain.TicketStatusResolved,
}

// ReconciliationService derives a ticket's status from the repair tickets of
// its cassettes.
type ReconciliationService struct {
	store   *repository.Store
	tx      repository.Transactor
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
	events  publisher

	validate func(current, target domain.TicketStatus, c transition.TicketContext) error
}

// ReconciliationDependencies bundles collaborators for the reconciliation service.
type ReconciliationDependencies struct {
	Store      *repository.Store
	Transactor repository.Transactor
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewReconciliationService constructs the service.
func NewReconciliationService(deps ReconciliationDependencies) *ReconciliationService {
	logger := orDefault(deps.Logger)
	now := orClock(deps.Clock)
	return &ReconciliationService{
		store:   deps.Store,
		tx:      deps.Transactor,
		metrics: deps.Metrics,
		logger:  logger,
		now:     now,
		events:  publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},

		validate: transition.Ticket.Validate,
	}
}

// ReconcileTicket brings one ticket's status in line with its repairs. When
// uow is non-nil every read and write goes through it so the caller's unit of
// work covers the reconciliation. Business outcomes such as a rejected
// transition are reported in the result; only infrastructure failures return
// an error.
func (s *ReconciliationService) ReconcileTicket(ctx context.Context, ticketID string, uow *repository.Store) (result ReconcileResult, err error) {
	defer func() {
		if err == nil {
			s.metrics.RecordReconcile(string(result.Outcome))
		}
	}()

	store := uow
	if store == nil {
		store = s.store
	}

	result = ReconcileResult{TicketID: ticketID}
	ticket, err := store.Tickets.GetWithChildren(ctx, ticketID)
	if errors.Is(err, repository.ErrNotFound) {
		result.Outcome = OutcomeTicketNotFound
		result.Reason = "ticket not found"
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	result.OldStatus = ticket.Status
	result.NewStatus = ticket.Status

	cassettes := ticket.Cassettes()
	result.Total = len(cassettes)
	if len(cassettes) == 0 {
		result.Outcome = OutcomeNoCassettes
		result.Reason = "no cassettes found"
		return result, nil
	}

	from := ticket.ScopeStart()
	var createdFrom *time.Time
	if !from.IsZero() {
		createdFrom = &from
	}
	repairs, err := store.Repairs.ListByCassettes(ctx, cassetteIDs(cassettes), createdFrom)
	if err != nil {
		return result, fmt.Errorf("load repairs for ticket %s: %w", ticketID, err)
	}
	completion := aggregate.Completion(ticket.ID, cassettes, aggregate.InScope(repairs, from))
	result.Completed = completion.Completed

	target, reason := reconcileTarget(ticket.Status, completion)
	result.Reason = reason
	if target == ticket.Status {
		result.Outcome = OutcomeUnchanged
		return result, nil
	}

	allCompleted := completion.AllCompleted
	guardCtx := transition.TicketContext{
		AllRepairsCompleted: &allCompleted,
		HasDelivery:         ticket.Delivery != nil,
		HasReturn:           false,
		RepairLocation:      ticket.RepairLocation,
	}
	if verr := s.validate(ticket.Status, target, guardCtx); verr != nil {
		s.logger.Warn("reconciliation transition rejected",
			zap.String("ticket_id", ticket.ID),
			zap.String("current_status", string(ticket.Status)),
			zap.String("target_status", string(target)),
			zap.Error(verr))
		result.Outcome = OutcomeRejected
		result.Reason = verr.Error()
		s.events.publish(ctx, events.Event{
			Type:     events.EventReconcileRejected,
			TicketID: ticket.ID,
			EntityID: ticket.ID,
			Actor:    SystemActor().event(),
			Payload: events.ReconcileRejectedPayload{
				CurrentStatus: ticket.Status,
				TargetStatus:  target,
				Reason:        verr.Error(),
			},
		})
		return result, nil
	}

	update := ticketStatusUpdate(ticket.Status, target, s.now())
	if err := store.Tickets.UpdateStatus(ctx, ticket.ID, update); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			s.logger.Info("ticket moved during reconciliation",
				zap.String("ticket_id", ticket.ID),
				zap.String("read_status", string(ticket.Status)))
			result.Outcome = OutcomeConflict
			result.Reason = "ticket status changed concurrently"
			return result, nil
		}
		return result, fmt.Errorf("update ticket %s: %w", ticketID, err)
	}

	entry := historyEntry(SystemActor(), ticket.ID, domain.ChangeTypeReconciled,
		map[string]any{"status": ticket.Status},
		map[string]any{"status": target, "reason": reason},
	)
	if err := store.History.Create(ctx, entry); err != nil {
		return result, fmt.Errorf("record reconciliation for ticket %s: %w", ticketID, err)
	}

	result.Updated = true
	result.NewStatus = target
	result.Outcome = OutcomeUpdated
	s.logger.Info("ticket status reconciled",
		zap.String("ticket_id", ticket.ID),
		zap.String("old_status", string(ticket.Status)),
		zap.String("new_status", string(target)),
		zap.String("reason", reason))
	s.events.publish(ctx, events.Event{
		Type:     events.EventTicketReconciled,
		TicketID: ticket.ID,
		EntityID: ticket.ID,
		Actor:    SystemActor().event(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(ticket.Status),
			NewStatus: string(target),
			Comment:   reason,
		},
	})
	return result, nil
}

// ReconcilePending sweeps tickets whose status follows repair progress, one
// unit of work per ticket. A failing ticket is counted and skipped.
func (s *ReconciliationService) ReconcilePending(ctx context.Context, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	summaries, err := s.store.Tickets.ListByStatus(ctx, reconcilableStatuses, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list reconcilable tickets: %w", err)
	}

	batch := BatchResult{Scanned: len(summaries)}
	for _, summary := range summaries {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		var result ReconcileResult
		err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
			var rerr error
			result, rerr = s.ReconcileTicket(ctx, summary.ID, store)
			return rerr
		})
		if err != nil {
			batch.Errors++
			s.logger.Error("ticket reconciliation failed",
				zap.String("ticket_id", summary.ID),
				zap.Error(err))
			continue
		}
		if result.Updated {
			batch.Synced++
		}
	}

	s.metrics.RecordSweep(s.now())
	s.logger.Info("reconciliation sweep finished",
		zap.Int("scanned", batch.Scanned),
		zap.Int("synced", batch.Synced),
		zap.Int("errors", batch.Errors))
	return batch, nil
}

// ReconcileForCassette reconciles every ticket that tracks the cassette's
// repairs, using uow when set.
func (s *ReconciliationService) ReconcileForCassette(ctx context.Context, cassetteID string, uow *repository.Store) ([]ReconcileResult, error) {
	store := uow
	if store == nil {
		store = s.store
	}
	summaries, err := store.Tickets.ListByCassette(ctx, cassetteID, reconcilableStatuses)
	if err != nil {
		return nil, fmt.Errorf("list tickets for cassette %s: %w", cassetteID, err)
	}
	results := make([]ReconcileResult, 0, len(summaries))
	for _, summary := range summaries {
		result, err := s.ReconcileTicket(ctx, summary.ID, store)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// reconcileTarget returns the status the repairs call for and why.
func reconcileTarget(current domain.TicketStatus, c aggregate.RepairCompletion) (domain.TicketStatus, string) {
	switch current {
	case domain.TicketStatusReceived, domain.TicketStatusInProgress:
		if c.AllCompleted {
			if c.Replaced > 0 {
				return domain.TicketStatusResolved, fmt.Sprintf("%d repair(s) completed, %d cassette(s) replaced", c.Completed, c.Replaced)
			}
			return domain.TicketStatusResolved, fmt.Sprintf("all %d repair(s) completed", c.Total)
		}
		if !c.HasRepairs {
			return current, "no repairs started yet"
		}
		progress := fmt.Sprintf("%d of %d repair(s) completed", c.Completed, c.Total)
		if current == domain.TicketStatusInProgress {
			return current, "status already correct: " + progress
		}
		return domain.TicketStatusInProgress, progress
	case domain.TicketStatusResolved:
		if c.AllCompleted {
			return current, "status already correct"
		}
		return domain.TicketStatusInProgress, fmt.Sprintf("%d repair(s) pending: %s", c.Pending, strings.Join(c.MissingSerials, ", "))
	}
	return current, fmt.Sprintf("status %s is not reconciled", current)
}
