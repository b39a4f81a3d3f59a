package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// CassetteRepository encapsulates cassette persistence.
type CassetteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Cassette, error)
	UpdateStatus(ctx context.Context, id string, status, expected domain.CassetteStatus) error
	// CreateReplacement inserts a new OK cassette and stamps original with
	// the replacing ticket.
	CreateReplacement(ctx context.Context, original domain.Cassette, ticketID, serialNumber string) (*domain.Cassette, error)
}

type cassetteRepository struct {
	db DBTX
}

// NewCassetteRepository instantiates repository.
func NewCassetteRepository(db DBTX) CassetteRepository {
	return &cassetteRepository{db: db}
}

func (r *cassetteRepository) GetByID(ctx context.Context, id string) (*domain.Cassette, error) {
	return getCassette(ctx, r.db, id)
}

func getCassette(ctx context.Context, db DBTX, id string) (*domain.Cassette, error) {
	const query = `
        SELECT id, serial_number, status, replacement_ticket_id, replaced_by_id, created_at, updated_at
        FROM cassettes WHERE id=$1`
	var cassette domain.Cassette
	if err := db.QueryRow(ctx, query, id).Scan(
		&cassette.ID,
		&cassette.SerialNumber,
		&cassette.Status,
		&cassette.ReplacementTicketID,
		&cassette.ReplacedByID,
		&cassette.CreatedAt,
		&cassette.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &cassette, nil
}

func (r *cassetteRepository) UpdateStatus(ctx context.Context, id string, status, expected domain.CassetteStatus) error {
	const query = `UPDATE cassettes SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	cmd, err := r.db.Exec(ctx, query, status, id, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *cassetteRepository) CreateReplacement(ctx context.Context, original domain.Cassette, ticketID, serialNumber string) (*domain.Cassette, error) {
	replacement := &domain.Cassette{
		ID:           uuid.NewString(),
		SerialNumber: serialNumber,
		Status:       domain.CassetteStatusOK,
	}
	const insert = `
        INSERT INTO cassettes (id, serial_number, status)
        VALUES ($1,$2,$3)
        RETURNING created_at, updated_at`
	if err := r.db.QueryRow(ctx, insert, replacement.ID, replacement.SerialNumber, replacement.Status).
		Scan(&replacement.CreatedAt, &replacement.UpdatedAt); err != nil {
		return nil, err
	}

	const stamp = `
        UPDATE cassettes SET replacement_ticket_id=$1, replaced_by_id=$2, updated_at=$3
        WHERE id=$4 AND status=$5 AND replacement_ticket_id IS NULL`
	cmd, err := r.db.Exec(ctx, stamp, ticketID, replacement.ID, time.Now(), original.ID, domain.CassetteStatusScrapped)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrStatusConflict
	}
	return replacement, nil
}
