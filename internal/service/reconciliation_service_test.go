package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/cassette-service/internal/aggregate"
	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/repository/memory"
	"github.com/spec-kit/cassette-service/internal/transition"
)

func TestReconcileTicket_ResolvesWhenEveryRepairCompleted(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived,
		cassette("c1", domain.CassetteStatusReadyForPickup),
		cassette("c2", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.seedRepair("r2", "c2", domain.RepairStatusCompleted, opened.Add(2*time.Hour))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, domain.TicketStatusReceived, result.OldStatus)
	assert.Equal(t, domain.TicketStatusResolved, result.NewStatus)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 2, result.Total)

	stored, _ := h.db.Ticket("t1")
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedAt)
	assert.True(t, stored.ResolvedAt.Equal(clockAt))

	history := h.db.History("t1")
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeReconciled, history[0].ChangeType)
	assert.Equal(t, domain.SubjectTypeSystem, history[0].ChangedByType)
	assert.Nil(t, history[0].ChangedByID)

	reconciled := h.recorded.ofType(events.EventTicketReconciled)
	require.Len(t, reconciled, 1)
	assert.Equal(t, "t1", reconciled[0].TicketID)
	assert.Equal(t, int64(1), h.metrics.Snapshot().Reconcile["updated"])
}

func TestReconcileTicket_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))

	first, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	require.True(t, first.Updated)

	second, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.False(t, second.Updated)
	assert.Equal(t, OutcomeUnchanged, second.Outcome)
	assert.Equal(t, "status already correct", second.Reason)
	assert.Len(t, h.db.History("t1"), 1)
}

func TestReconcileTicket_PartialProgressMovesToInProgress(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived,
		cassette("c1", domain.CassetteStatusReadyForPickup),
		cassette("c2", domain.CassetteStatusInRepair))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.seedRepair("r2", "c2", domain.RepairStatusOnProgress, opened.Add(time.Hour))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, domain.TicketStatusInProgress, result.NewStatus)
	assert.Equal(t, "1 of 2 repair(s) completed", result.Reason)

	again, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, again.Outcome)
	assert.Contains(t, again.Reason, "status already correct")
}

func TestReconcileTicket_NoRepairsLeavesReceived(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusInTransitToRC))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, result.Outcome)
	assert.Equal(t, domain.TicketStatusReceived, h.ticketStatus(t, "t1"))
}

func TestReconcileTicket_ReopensResolvedTicketWithPendingRepairs(t *testing.T) {
	h := newHarness(t)
	resolvedAt := opened.Add(24 * time.Hour)
	h.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusResolved, CreatedAt: opened, ResolvedAt: &resolvedAt})
	h.db.PutCassette(cassette("c1", domain.CassetteStatusReadyForPickup))
	h.db.PutCassette(cassette("c2", domain.CassetteStatusInRepair))
	h.db.LinkCassettes("t1", "c1", "c2")
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.seedRepair("r2", "c2", domain.RepairStatusOnProgress, opened.Add(time.Hour))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Equal(t, domain.TicketStatusInProgress, result.NewStatus)
	assert.Contains(t, result.Reason, "SN-c2")

	stored, _ := h.db.Ticket("t1")
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
	assert.Nil(t, stored.ResolvedAt)
}

func TestReconcileTicket_IgnoresRepairsFromEarlierIncidents(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusInRepair))
	h.seedRepair("old", "c1", domain.RepairStatusCompleted, opened.Add(-72*time.Hour))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, "no repairs started yet", result.Reason)
}

func TestReconcileTicket_ScopeFallsBackToReportedAt(t *testing.T) {
	h := newHarness(t)
	reported := opened
	h.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusReceived, ReportedAt: &reported})
	h.db.PutCassette(cassette("c1", domain.CassetteStatusInRepair))
	h.db.LinkCassettes("t1", "c1")
	h.seedRepair("old", "c1", domain.RepairStatusCompleted, opened.Add(-time.Hour))
	h.seedRepair("new", "c1", domain.RepairStatusDiagnosing, opened.Add(time.Hour))

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, result.NewStatus)
	assert.Equal(t, 0, result.Completed)
}

func TestReconcileTicket_BusinessOutcomesAreNotErrors(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("empty", domain.TicketStatusReceived)

	missing, err := h.reconciler.ReconcileTicket(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTicketNotFound, missing.Outcome)
	assert.False(t, missing.Updated)

	empty, err := h.reconciler.ReconcileTicket(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCassettes, empty.Outcome)
	assert.Equal(t, "no cassettes found", empty.Reason)
}

func TestReconcileTicket_RejectedTransitionIsANoOp(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.reconciler.validate = func(current, target domain.TicketStatus, _ transition.TicketContext) error {
		return &transition.InvalidTransitionError{Kind: transition.KindTicket, Current: string(current), Target: string(target), GuardRejected: true}
	}

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Contains(t, result.Reason, "preconditions not met")
	assert.Equal(t, domain.TicketStatusReceived, h.ticketStatus(t, "t1"))
	assert.Empty(t, h.db.History("t1"))
	assert.Len(t, h.recorded.ofType(events.EventReconcileRejected), 1)
}

func TestReconcileTicket_ConcurrentChangeIsReportedAsConflict(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))

	store := *h.db.Store()
	store.Tickets = faultyTickets{TicketRepository: store.Tickets, updateErr: repository.ErrStatusConflict}

	result, err := h.reconciler.ReconcileTicket(context.Background(), "t1", &store)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, result.Outcome)
	assert.False(t, result.Updated)
	assert.Empty(t, h.db.History("t1"))
}

func TestReconcileTicket_UsesCallerUnitOfWork(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusInProgress, cassette("c1", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))

	err := h.db.WithinTx(context.Background(), func(ctx context.Context, store *repository.Store) error {
		result, err := h.reconciler.ReconcileTicket(ctx, "t1", store)
		require.NoError(t, err)
		require.True(t, result.Updated)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.TicketStatusInProgress, h.ticketStatus(t, "t1"))
}

func TestReconcilePending_IsolatesFailures(t *testing.T) {
	h := newHarnessWithTx(t, func(db *memory.DB) repository.Transactor {
		return faultyTx{db: db, faults: faultyTickets{failID: "broken"}}
	})
	h.seedTicket("ready", domain.TicketStatusReceived, cassette("c1", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.seedTicket("broken", domain.TicketStatusInProgress, cassette("c2", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r2", "c2", domain.RepairStatusCompleted, opened.Add(time.Hour))
	h.seedTicket("waiting", domain.TicketStatusInProgress, cassette("c3", domain.CassetteStatusInRepair))
	h.seedRepair("r3", "c3", domain.RepairStatusOnProgress, opened.Add(time.Hour))
	h.seedTicket("closed", domain.TicketStatusClosed, cassette("c4", domain.CassetteStatusOK))

	batch, err := h.reconciler.ReconcilePending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Scanned: 3, Synced: 1, Errors: 1}, batch)

	assert.Equal(t, domain.TicketStatusResolved, h.ticketStatus(t, "ready"))
	assert.Equal(t, domain.TicketStatusInProgress, h.ticketStatus(t, "broken"))
	assert.Equal(t, domain.TicketStatusInProgress, h.ticketStatus(t, "waiting"))
	assert.Equal(t, domain.TicketStatusClosed, h.ticketStatus(t, "closed"))
	assert.NotNil(t, h.metrics.Snapshot().LastSweep)
}

func TestReconcilePending_RespectsLimit(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"a", "b", "c"} {
		h.seedTicket(id, domain.TicketStatusReceived, cassette("c-"+id, domain.CassetteStatusInRepair))
	}

	batch, err := h.reconciler.ReconcilePending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Scanned)
	assert.Equal(t, 0, batch.Synced)
}

func TestReconcileTarget(t *testing.T) {
	tests := []struct {
		name    string
		current domain.TicketStatus
		c       aggregate.RepairCompletion
		want    domain.TicketStatus
	}{
		{"received all done", domain.TicketStatusReceived, completion(2, 2, true), domain.TicketStatusResolved},
		{"received started", domain.TicketStatusReceived, completion(2, 0, true), domain.TicketStatusInProgress},
		{"received idle", domain.TicketStatusReceived, completion(2, 0, false), domain.TicketStatusReceived},
		{"in progress done", domain.TicketStatusInProgress, completion(1, 1, true), domain.TicketStatusResolved},
		{"resolved drift", domain.TicketStatusResolved, completion(2, 1, true), domain.TicketStatusInProgress},
		{"resolved steady", domain.TicketStatusResolved, completion(2, 2, true), domain.TicketStatusResolved},
		{"closed untouched", domain.TicketStatusClosed, completion(1, 1, true), domain.TicketStatusClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := reconcileTarget(tt.current, tt.c)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func completion(total, completed int, started bool) aggregate.RepairCompletion {
	return aggregate.RepairCompletion{
		Total:        total,
		Completed:    completed,
		Pending:      total - completed,
		AllCompleted: completed == total,
		HasRepairs:   started,
	}
}

func TestReconcileTicket_ReplacedScrapResolves(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusInProgress, cassette("c1", domain.CassetteStatusScrapped))
	h.seedRepair("r1", "c1", domain.RepairStatusScrapped, opened.Add(time.Hour))

	before, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, before.Outcome)

	_, err = h.cassettes.ReplaceCassettes(context.Background(), rcStaff, "t1", []ReplacementInput{{CassetteID: "c1"}})
	require.NoError(t, err)

	after, err := h.reconciler.ReconcileTicket(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, after.Outcome)
	assert.Equal(t, domain.TicketStatusResolved, after.NewStatus)
	assert.Equal(t, "0 repair(s) completed, 1 cassette(s) replaced", after.Reason)
}
