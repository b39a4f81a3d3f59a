package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/observability"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/repository/memory"
)

var (
	opened  = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	clockAt = opened.Add(48 * time.Hour)
	errBoom = errors.New("connection reset")
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	db          *memory.DB
	metrics     *observability.Metrics
	recorded    *recorder
	reconciler  *ReconciliationService
	tickets     *TicketService
	cassettes   *CassetteService
	repairs     *RepairService
	maintenance *MaintenanceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithTx(t, nil)
}

// newHarnessWithTx builds the services over a fresh memory database. wrap,
// when set, decorates the transactor handed to the services.
func newHarnessWithTx(t *testing.T, wrap func(*memory.DB) repository.Transactor) *harness {
	t.Helper()
	db := memory.New()
	db.SetClock(func() time.Time { return clockAt })
	clock := func() time.Time { return clockAt }

	var tx repository.Transactor = db
	if wrap != nil {
		tx = wrap(db)
	}

	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	for _, et := range []events.EventType{
		events.EventTicketStatusChanged,
		events.EventTicketReconciled,
		events.EventReconcileRejected,
		events.EventCassetteStatusChanged,
		events.EventCassetteReplaced,
		events.EventRepairStatusChanged,
		events.EventMaintenanceStatusChanged,
	} {
		dispatcher.Subscribe(et, rec.handle)
	}

	metrics := observability.NewMetrics()
	store := db.Store()
	reconciler := NewReconciliationService(ReconciliationDependencies{
		Store: store, Transactor: tx, Dispatcher: dispatcher, Metrics: metrics, Clock: clock,
	})
	return &harness{
		db:         db,
		metrics:    metrics,
		recorded:   rec,
		reconciler: reconciler,
		tickets: NewTicketService(TicketDependencies{
			Store: store, Transactor: tx, Dispatcher: dispatcher, Clock: clock,
		}),
		cassettes: NewCassetteService(CassetteDependencies{
			Store: store, Transactor: tx, Dispatcher: dispatcher, Clock: clock,
		}),
		repairs: NewRepairService(RepairDependencies{
			Store: store, Transactor: tx, Reconciler: reconciler, Dispatcher: dispatcher, Clock: clock,
		}),
		maintenance: NewMaintenanceService(MaintenanceDependencies{
			Store: store, Dispatcher: dispatcher, Clock: clock,
		}),
	}
}

// seedTicket stores a ticket opened at opened and links the cassettes.
func (h *harness) seedTicket(id string, status domain.TicketStatus, cassettes ...domain.Cassette) {
	h.db.PutTicket(domain.Ticket{ID: id, Number: "TKT-" + id, Status: status, CreatedAt: opened, UpdatedAt: opened})
	ids := make([]string, 0, len(cassettes))
	for _, c := range cassettes {
		h.db.PutCassette(c)
		ids = append(ids, c.ID)
	}
	if len(ids) > 0 {
		h.db.LinkCassettes(id, ids...)
	}
}

func (h *harness) seedRepair(id, cassetteID string, status domain.RepairStatus, createdAt time.Time) {
	h.db.PutRepair(domain.RepairTicket{ID: id, CassetteID: cassetteID, Status: status, CreatedAt: createdAt, UpdatedAt: createdAt})
}

func (h *harness) ticketStatus(t *testing.T, id string) domain.TicketStatus {
	t.Helper()
	ticket, ok := h.db.Ticket(id)
	if !ok {
		t.Fatalf("ticket %s missing", id)
	}
	return ticket.Status
}

func (h *harness) cassetteStatus(t *testing.T, id string) domain.CassetteStatus {
	t.Helper()
	c, ok := h.db.Cassette(id)
	if !ok {
		t.Fatalf("cassette %s missing", id)
	}
	return c.Status
}

func cassette(id string, status domain.CassetteStatus) domain.Cassette {
	return domain.Cassette{ID: id, SerialNumber: "SN-" + id, Status: status}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// faultyTickets fails loads of one ticket and, optionally, every status update.
type faultyTickets struct {
	repository.TicketRepository
	failID    string
	updateErr error
}

func (f faultyTickets) GetWithChildren(ctx context.Context, id string) (*domain.Ticket, error) {
	if id == f.failID {
		return nil, errBoom
	}
	return f.TicketRepository.GetWithChildren(ctx, id)
}

func (f faultyTickets) UpdateStatus(ctx context.Context, id string, update repository.TicketStatusUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.TicketRepository.UpdateStatus(ctx, id, update)
}

// faultyTx runs the memory transaction with tickets decorated by faultyTickets.
type faultyTx struct {
	db     *memory.DB
	faults faultyTickets
}

func (f faultyTx) WithinTx(ctx context.Context, fn func(ctx context.Context, store *repository.Store) error) error {
	return f.db.WithinTx(ctx, func(ctx context.Context, store *repository.Store) error {
		wrapped := *store
		faults := f.faults
		faults.TicketRepository = store.Tickets
		wrapped.Tickets = faults
		return fn(ctx, &wrapped)
	})
}
