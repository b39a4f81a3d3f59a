// Package memory is an in-process implementation of the repository
// interfaces, used when no Postgres DSN is configured and by tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/repository"
)

type dataset struct {
	tickets     map[string]domain.Ticket
	links       map[string][]domain.CassetteLink
	deliveries  map[string]domain.Delivery
	returns     map[string]domain.Return
	cassettes   map[string]domain.Cassette
	repairs     map[string]domain.RepairTicket
	maintenance map[string]domain.PreventiveMaintenance
	history     []domain.TicketHistory
}

func newDataset() *dataset {
	return &dataset{
		tickets:     map[string]domain.Ticket{},
		links:       map[string][]domain.CassetteLink{},
		deliveries:  map[string]domain.Delivery{},
		returns:     map[string]domain.Return{},
		cassettes:   map[string]domain.Cassette{},
		repairs:     map[string]domain.RepairTicket{},
		maintenance: map[string]domain.PreventiveMaintenance{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.links {
		c.links[k] = append([]domain.CassetteLink(nil), v...)
	}
	for k, v := range d.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range d.returns {
		c.returns[k] = v
	}
	for k, v := range d.cassettes {
		c.cassettes[k] = v
	}
	for k, v := range d.repairs {
		c.repairs[k] = v
	}
	for k, v := range d.maintenance {
		c.maintenance[k] = v
	}
	c.history = append([]domain.TicketHistory(nil), d.history...)
	return c
}

// DB holds every record behind a single mutex.
type DB struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *dataset
	now  func() time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{data: newDataset(), now: time.Now}
}

// SetClock overrides the time source used for updated_at stamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) read(fn func(d *dataset)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.data)
}

func (db *DB) write(fn func(d *dataset, now time.Time) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.data, db.now())
}

// Store returns repositories operating directly on the database.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Tickets:     &ticketRepository{db: db},
		Cassettes:   &cassetteRepository{db: db},
		Repairs:     &repairRepository{db: db},
		Maintenance: &maintenanceRepository{db: db},
		History:     &historyRepository{db: db},
	}
}

// WithinTx runs fn against a private copy that replaces the shared data only
// when fn succeeds. Transactions are serialized; a plain write racing a
// transaction is lost when the transaction commits.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, store *repository.Store) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	scratch := &DB{data: db.data.clone(), now: db.now}
	db.mu.Unlock()

	if err := fn(ctx, scratch.Store()); err != nil {
		return err
	}

	db.mu.Lock()
	db.data = scratch.data
	db.mu.Unlock()
	return nil
}
