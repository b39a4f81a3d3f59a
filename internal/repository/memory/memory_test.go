package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestGetWithChildren_ResolvesAssociations(t *testing.T) {
	db := New()
	db.PutCassette(domain.Cassette{ID: "c1", SerialNumber: "SN-1", Status: domain.CassetteStatusInRepair})
	db.PutCassette(domain.Cassette{ID: "c2", SerialNumber: "SN-2", Status: domain.CassetteStatusBad})
	db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusReceived, CassetteID: strPtr("c2")})
	db.LinkCassettes("t1", "c1")
	db.PutDelivery(domain.Delivery{ID: "d1", TicketID: "t1", CassetteID: strPtr("c2")})

	ticket, err := db.Store().Tickets.GetWithChildren(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, ticket.CassetteLinks, 1)
	assert.Equal(t, "SN-1", ticket.CassetteLinks[0].Cassette.SerialNumber)
	require.NotNil(t, ticket.Delivery)
	require.NotNil(t, ticket.Delivery.Cassette)
	require.NotNil(t, ticket.Cassette)
	assert.Nil(t, ticket.Return)

	cassettes := ticket.Cassettes()
	require.Len(t, cassettes, 1)
	assert.Equal(t, "c1", cassettes[0].ID)

	_, err = db.Store().Tickets.GetWithChildren(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTicketUpdateStatus_IsConditional(t *testing.T) {
	db := New()
	db.PutTicket(domain.Ticket{ID: "t1", Status: domain.TicketStatusInProgress})
	tickets := db.Store().Tickets

	err := tickets.UpdateStatus(context.Background(), "t1", repository.TicketStatusUpdate{
		Status:         domain.TicketStatusResolved,
		ExpectedStatus: domain.TicketStatusReceived,
	})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	now := time.Now()
	require.NoError(t, tickets.UpdateStatus(context.Background(), "t1", repository.TicketStatusUpdate{
		Status:         domain.TicketStatusResolved,
		ExpectedStatus: domain.TicketStatusInProgress,
		ResolvedAt:     &now,
	}))
	stored, _ := db.Ticket("t1")
	assert.Equal(t, domain.TicketStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedAt)

	require.NoError(t, tickets.UpdateStatus(context.Background(), "t1", repository.TicketStatusUpdate{
		Status:          domain.TicketStatusInProgress,
		ExpectedStatus:  domain.TicketStatusResolved,
		ClearResolvedAt: true,
	}))
	stored, _ = db.Ticket("t1")
	assert.Nil(t, stored.ResolvedAt)
}

func TestListByStatus_OrdersByUpdatedAtDescAndLimits(t *testing.T) {
	db := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	db.PutTicket(domain.Ticket{ID: "old", Status: domain.TicketStatusReceived, UpdatedAt: base})
	db.PutTicket(domain.Ticket{ID: "new", Status: domain.TicketStatusResolved, UpdatedAt: base.Add(time.Hour)})
	db.PutTicket(domain.Ticket{ID: "closed", Status: domain.TicketStatusClosed, UpdatedAt: base.Add(2 * time.Hour)})

	result, err := db.Store().Tickets.ListByStatus(context.Background(),
		[]domain.TicketStatus{domain.TicketStatusReceived, domain.TicketStatusResolved}, 1)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "new", result[0].ID)
}

func TestListByCassettes_ScopesAndOrders(t *testing.T) {
	db := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deleted := base.Add(5 * time.Hour)
	db.PutRepair(domain.RepairTicket{ID: "r-before", CassetteID: "c1", Status: domain.RepairStatusCompleted, CreatedAt: base.Add(-time.Hour)})
	db.PutRepair(domain.RepairTicket{ID: "r-1", CassetteID: "c1", Status: domain.RepairStatusOnProgress, CreatedAt: base.Add(time.Hour)})
	db.PutRepair(domain.RepairTicket{ID: "r-2", CassetteID: "c1", Status: domain.RepairStatusDiagnosing, CreatedAt: base.Add(2 * time.Hour)})
	db.PutRepair(domain.RepairTicket{ID: "r-del", CassetteID: "c1", Status: domain.RepairStatusCompleted, CreatedAt: base.Add(3 * time.Hour), DeletedAt: &deleted})
	db.PutRepair(domain.RepairTicket{ID: "r-other", CassetteID: "c9", Status: domain.RepairStatusCompleted, CreatedAt: base.Add(time.Hour)})

	result, err := db.Store().Repairs.ListByCassettes(context.Background(), []string{"c1"}, &base)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "r-2", result[0].ID)
	assert.Equal(t, "r-1", result[1].ID)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := New()
	db.PutCassette(domain.Cassette{ID: "c1", Status: domain.CassetteStatusBad})
	boom := errors.New("boom")

	err := db.WithinTx(context.Background(), func(ctx context.Context, store *repository.Store) error {
		require.NoError(t, store.Cassettes.UpdateStatus(ctx, "c1", domain.CassetteStatusInRepair, domain.CassetteStatusBad))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	stored, _ := db.Cassette("c1")
	assert.Equal(t, domain.CassetteStatusBad, stored.Status)

	err = db.WithinTx(context.Background(), func(ctx context.Context, store *repository.Store) error {
		return store.Cassettes.UpdateStatus(ctx, "c1", domain.CassetteStatusInRepair, domain.CassetteStatusBad)
	})
	require.NoError(t, err)
	stored, _ = db.Cassette("c1")
	assert.Equal(t, domain.CassetteStatusInRepair, stored.Status)
}

func TestCreateReplacement_StampsOriginalOnce(t *testing.T) {
	db := New()
	db.PutCassette(domain.Cassette{ID: "c1", SerialNumber: "SN-1", Status: domain.CassetteStatusScrapped})
	original, _ := db.Cassette("c1")
	cassettes := db.Store().Cassettes

	created, err := cassettes.CreateReplacement(context.Background(), original, "t1", "SN-1R")
	require.NoError(t, err)
	assert.Equal(t, domain.CassetteStatusOK, created.Status)
	assert.Equal(t, "SN-1R", created.SerialNumber)

	stored, _ := db.Cassette("c1")
	require.NotNil(t, stored.ReplacementTicketID)
	assert.Equal(t, "t1", *stored.ReplacementTicketID)
	assert.Equal(t, created.ID, *stored.ReplacedByID)

	_, err = cassettes.CreateReplacement(context.Background(), original, "t2", "SN-1RR")
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
}
