package repository

import (
	"context"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// MaintenanceRepository encapsulates preventive maintenance persistence.
type MaintenanceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PreventiveMaintenance, error)
	UpdateStatus(ctx context.Context, id string, status, expected domain.PMStatus, completedAt *time.Time) error
}

type maintenanceRepository struct {
	db DBTX
}

// NewMaintenanceRepository instantiates repository.
func NewMaintenanceRepository(db DBTX) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) GetByID(ctx context.Context, id string) (*domain.PreventiveMaintenance, error) {
	const query = `
        SELECT id, number, status, scheduled_at, completed_at, created_at, updated_at
        FROM preventive_maintenance WHERE id=$1`
	var pm domain.PreventiveMaintenance
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&pm.ID,
		&pm.Number,
		&pm.Status,
		&pm.ScheduledAt,
		&pm.CompletedAt,
		&pm.CreatedAt,
		&pm.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &pm, nil
}

func (r *maintenanceRepository) UpdateStatus(ctx context.Context, id string, status, expected domain.PMStatus, completedAt *time.Time) error {
	const query = `
        UPDATE preventive_maintenance SET status=$1, completed_at=COALESCE($2, completed_at), updated_at=NOW()
        WHERE id=$3 AND status=$4`
	cmd, err := r.db.Exec(ctx, query, status, completedAt, id, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
