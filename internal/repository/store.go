package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned when a conditional status update matched no
	// row because the record moved on since it was read.
	ErrStatusConflict = errors.New("status changed concurrently")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories bound to one connection or transaction.
type Store struct {
	Tickets     TicketRepository
	Cassettes   CassetteRepository
	Repairs     RepairTicketRepository
	Maintenance MaintenanceRepository
	History     TicketHistoryRepository
}

// NewStore binds every repository to db.
func NewStore(db DBTX) *Store {
	return &Store{
		Tickets:     NewTicketRepository(db),
		Cassettes:   NewCassetteRepository(db),
		Repairs:     NewRepairTicketRepository(db),
		Maintenance: NewMaintenanceRepository(db),
		History:     NewTicketHistoryRepository(db),
	}
}

// Transactor runs fn inside a unit of work. The store handed to fn is only
// valid until fn returns; returning an error rolls the unit back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store *Store) error) error
}

// TxManager implements Transactor over a pgx pool.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager instantiates the transaction manager.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithinTx begins a transaction, commits when fn succeeds and rolls back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, store *Store) error) error {
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
