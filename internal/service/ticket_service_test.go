package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/transition"
)

var operator = StaffActor("staff-9", domain.OrgRolePengelola)

func TestTicketUpdateStatus_AppliesLegalTransition(t *testing.T) {
	h := newHarness(t)
	resolvedAt := opened
	h.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusResolved, ResolvedAt: &resolvedAt})

	updated, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusClosed, " confirmed ")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	history := h.db.History("t1")
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeStatus, history[0].ChangeType)
	assert.Equal(t, "confirmed", history[0].NewValue["comment"])
	require.NotNil(t, history[0].ChangedByID)
	assert.Equal(t, "staff-9", *history[0].ChangedByID)

	changed := h.recorded.ofType(events.EventTicketStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.OrgRolePengelola, changed[0].Actor.Role)
}

func TestTicketUpdateStatus_ReopeningClearsResolvedAt(t *testing.T) {
	h := newHarness(t)
	resolvedAt := opened
	h.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusResolved, ResolvedAt: &resolvedAt})

	updated, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	assert.Nil(t, updated.ResolvedAt)
}

func TestTicketUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	h := newHarness(t)
	h.db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusClosed})

	_, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusOpen, "")
	var invalid *transition.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "CLOSED", invalid.Current)
	assert.Equal(t, "OPEN", invalid.Target)
	assert.Empty(t, h.db.History("t1"))
}

func TestTicketUpdateStatus_ResolveNeedsEveryRepair(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusInProgress,
		cassette("c1", domain.CassetteStatusReadyForPickup),
		cassette("c2", domain.CassetteStatusInRepair))
	h.seedRepair("r1", "c1", domain.RepairStatusCompleted, opened.Add(time.Hour))

	_, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusResolved, "")
	var invalid *transition.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, invalid.GuardRejected)
	assert.Equal(t, domain.TicketStatusInProgress, h.ticketStatus(t, "t1"))
}

func TestTicketUpdateStatus_OnSiteApproval(t *testing.T) {
	h := newHarness(t)
	h.db.PutTicket(domain.Ticket{ID: "remote", Status: domain.TicketStatusOpen})
	onSite := domain.RepairLocationOnSite
	h.db.PutTicket(domain.Ticket{ID: "site", Status: domain.TicketStatusOpen, RepairLocation: &onSite})

	_, err := h.tickets.UpdateStatus(context.Background(), operator, "remote", domain.TicketStatusPendingApproval, "")
	assert.ErrorIs(t, err, transition.ErrInvalidTransition)

	updated, err := h.tickets.UpdateStatus(context.Background(), operator, "site", domain.TicketStatusPendingApproval, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPendingApproval, updated.Status)
}

func TestTicketUpdateStatus_MissingTicket(t *testing.T) {
	h := newHarness(t)
	_, err := h.tickets.UpdateStatus(context.Background(), operator, "nope", domain.TicketStatusClosed, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = h.tickets.ListHistory(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMaintenanceUpdateStatus(t *testing.T) {
	h := newHarness(t)
	h.db.PutMaintenance(domain.PreventiveMaintenance{ID: "pm1", Status: domain.PMStatusScheduled, ScheduledAt: opened})

	_, err := h.maintenance.UpdateStatus(context.Background(), operator, "pm1", domain.PMStatusCompleted)
	assert.ErrorIs(t, err, transition.ErrInvalidTransition)

	_, err = h.maintenance.UpdateStatus(context.Background(), operator, "pm1", domain.PMStatusInProgress)
	require.NoError(t, err)
	done, err := h.maintenance.UpdateStatus(context.Background(), operator, "pm1", domain.PMStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PMStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(clockAt))
	assert.Len(t, h.recorded.ofType(events.EventMaintenanceStatusChanged), 2)
}

func TestTicketUpdateStatus_ResolvesAfterScrappedCassetteReplaced(t *testing.T) {
	h := newHarness(t)
	h.seedTicket("t1", domain.TicketStatusInProgress,
		cassette("c1", domain.CassetteStatusScrapped),
		cassette("c2", domain.CassetteStatusReadyForPickup))
	h.seedRepair("r1", "c1", domain.RepairStatusScrapped, opened.Add(time.Hour))
	h.seedRepair("r2", "c2", domain.RepairStatusCompleted, opened.Add(time.Hour))

	_, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusResolved, "")
	require.ErrorIs(t, err, transition.ErrInvalidTransition)

	_, err = h.cassettes.ReplaceCassettes(context.Background(), rcStaff, "t1", []ReplacementInput{{CassetteID: "c1"}})
	require.NoError(t, err)

	updated, err := h.tickets.UpdateStatus(context.Background(), operator, "t1", domain.TicketStatusResolved, "replacement issued")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
}
