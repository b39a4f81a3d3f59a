package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/transition"
)

// RepairService coordinates repair ticket workflows at the repair center.
type RepairService struct {
	store      *repository.Store
	tx         repository.Transactor
	reconciler *ReconciliationService
	logger     *zap.Logger
	now        func() time.Time
	events     publisher
}

// RepairDependencies bundles collaborators for the repair service.
type RepairDependencies struct {
	Store      *repository.Store
	Transactor repository.Transactor
	Reconciler *ReconciliationService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// RepairTransitionInput carries optional fields recorded with the change.
type RepairTransitionInput struct {
	RepairAction *string
	QCPassed     *bool
}

// RepairUpdateResult is the outcome of a repair status change.
type RepairUpdateResult struct {
	Repair     *domain.RepairTicket `json:"repair_ticket"`
	Cassette   *domain.Cassette     `json:"cassette,omitempty"`
	Reconciled []ReconcileResult    `json:"reconciled"`
}

// NewRepairService constructs the service.
func NewRepairService(deps RepairDependencies) *RepairService {
	logger := orDefault(deps.Logger)
	now := orClock(deps.Clock)
	return &RepairService{
		store:      deps.Store,
		tx:         deps.Transactor,
		reconciler: deps.Reconciler,
		logger:     logger,
		now:        now,
		events:     publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// GetRepair loads a repair ticket.
func (s *RepairService) GetRepair(ctx context.Context, repairID string) (*domain.RepairTicket, error) {
	return s.store.Repairs.GetByID(ctx, repairID)
}

// UpdateStatus moves a repair ticket, mirrors the result onto its cassette
// where the cassette lifecycle permits and reconciles every ticket tracking
// that cassette, all in one unit of work.
func (s *RepairService) UpdateStatus(ctx context.Context, actor Actor, repairID string, target domain.RepairStatus, input RepairTransitionInput) (*RepairUpdateResult, error) {
	result := &RepairUpdateResult{}
	var old domain.RepairStatus
	err := inTx(ctx, s.tx, s.store, func(ctx context.Context, store *repository.Store) error {
		repair, err := store.Repairs.GetByID(ctx, repairID)
		if err != nil {
			return err
		}
		old = repair.Status

		action := repair.RepairAction
		if input.RepairAction != nil {
			trimmed := strings.TrimSpace(*input.RepairAction)
			action = &trimmed
		}
		qc := repair.QCPassed
		if input.QCPassed != nil {
			qc = input.QCPassed
		}
		guardCtx := transition.RepairContext{
			HasRepairAction: action != nil && *action != "",
			QC:              domain.QCFromBool(qc),
		}
		if err := transition.Repair.Validate(repair.Status, target, guardCtx); err != nil {
			return err
		}

		update := repository.RepairStatusUpdate{
			Status:         target,
			ExpectedStatus: repair.Status,
			QCPassed:       input.QCPassed,
		}
		if input.RepairAction != nil {
			update.RepairAction = action
		}
		if target == domain.RepairStatusCompleted {
			now := s.now()
			update.CompletedAt = &now
		}
		if err := store.Repairs.UpdateStatus(ctx, repair.ID, update); err != nil {
			return err
		}
		if result.Repair, err = store.Repairs.GetByID(ctx, repair.ID); err != nil {
			return err
		}

		if result.Cassette, err = s.mirrorCassette(ctx, store, result.Repair); err != nil {
			return err
		}
		if s.reconciler != nil {
			result.Reconciled, err = s.reconciler.ReconcileForCassette(ctx, repair.CassetteID, store)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("repair ticket status changed",
		zap.String("repair_ticket_id", result.Repair.ID),
		zap.String("cassette_id", result.Repair.CassetteID),
		zap.String("old_status", string(old)),
		zap.String("new_status", string(result.Repair.Status)),
		zap.Int("tickets_reconciled", len(result.Reconciled)))
	s.events.publish(ctx, events.Event{
		Type:     events.EventRepairStatusChanged,
		EntityID: result.Repair.ID,
		Actor:    actor.event(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(old),
			NewStatus: string(result.Repair.Status),
		},
	})
	return result, nil
}

// mirrorCassette derives the cassette status a repair outcome implies and
// applies it when the cassette machine allows the move. An unmirrorable
// outcome leaves the cassette alone.
func (s *RepairService) mirrorCassette(ctx context.Context, store *repository.Store, repair *domain.RepairTicket) (*domain.Cassette, error) {
	cassette, err := store.Cassettes.GetByID(ctx, repair.CassetteID)
	if err != nil {
		return nil, err
	}

	var target domain.CassetteStatus
	switch repair.Status {
	case domain.RepairStatusDiagnosing, domain.RepairStatusOnProgress:
		target = domain.CassetteStatusInRepair
	case domain.RepairStatusCompleted:
		if repair.QC() != domain.QCPassed {
			return cassette, nil
		}
		target = domain.CassetteStatusReadyForPickup
		onSite, err := s.repairedOnSite(ctx, store, cassette.ID)
		if err != nil {
			return nil, err
		}
		if onSite {
			target = domain.CassetteStatusOK
		}
	case domain.RepairStatusScrapped:
		target = domain.CassetteStatusScrapped
	default:
		return cassette, nil
	}
	if target == cassette.Status {
		return cassette, nil
	}

	guardCtx := transition.CassetteContext{QC: repair.QC()}
	if !transition.Cassette.CanTransition(cassette.Status, target, guardCtx) {
		s.logger.Debug("cassette status not mirrored",
			zap.String("cassette_id", cassette.ID),
			zap.String("current_status", string(cassette.Status)),
			zap.String("target_status", string(target)))
		return cassette, nil
	}
	if err := store.Cassettes.UpdateStatus(ctx, cassette.ID, target, cassette.Status); err != nil {
		return nil, err
	}
	return store.Cassettes.GetByID(ctx, cassette.ID)
}

func (s *RepairService) repairedOnSite(ctx context.Context, store *repository.Store, cassetteID string) (bool, error) {
	summaries, err := store.Tickets.ListByCassette(ctx, cassetteID, reconcilableStatuses)
	if err != nil {
		return false, err
	}
	for _, summary := range summaries {
		ticket, err := store.Tickets.GetWithChildren(ctx, summary.ID)
		if err != nil {
			return false, err
		}
		if ticket.RepairLocation != nil && *ticket.RepairLocation == domain.RepairLocationOnSite {
			return true, nil
		}
	}
	return false, nil
}
