package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// RepairStatusUpdate is a conditional repair status write; nil fields are left
// unchanged.
type RepairStatusUpdate struct {
	Status         domain.RepairStatus
	ExpectedStatus domain.RepairStatus
	RepairAction   *string
	QCPassed       *bool
	CompletedAt    *time.Time
}

// RepairTicketRepository encapsulates repair ticket persistence.
type RepairTicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.RepairTicket, error)
	// ListByCassettes excludes soft-deleted rows and, when createdFrom is set,
	// rows created before it. Results are ordered newest first.
	ListByCassettes(ctx context.Context, cassetteIDs []string, createdFrom *time.Time) ([]domain.RepairTicket, error)
	UpdateStatus(ctx context.Context, id string, update RepairStatusUpdate) error
}

type repairTicketRepository struct {
	db DBTX
}

// NewRepairTicketRepository instantiates repository.
func NewRepairTicketRepository(db DBTX) RepairTicketRepository {
	return &repairTicketRepository{db: db}
}

const repairColumns = `id, cassette_id, status, repair_action, qc_passed, created_at, updated_at, completed_at, deleted_at`

func (r *repairTicketRepository) GetByID(ctx context.Context, id string) (*domain.RepairTicket, error) {
	query := `SELECT ` + repairColumns + ` FROM repair_tickets WHERE id=$1 AND deleted_at IS NULL`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result, err := scanRepairs(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return &result[0], nil
}

func (r *repairTicketRepository) ListByCassettes(ctx context.Context, cassetteIDs []string, createdFrom *time.Time) ([]domain.RepairTicket, error) {
	if len(cassetteIDs) == 0 {
		return nil, nil
	}
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	placeholders := make([]string, len(cassetteIDs))
	for i, id := range cassetteIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	clauses = append(clauses, fmt.Sprintf("cassette_id IN (%s)", strings.Join(placeholders, ",")))

	if createdFrom != nil && !createdFrom.IsZero() {
		args = append(args, *createdFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM repair_tickets WHERE %s ORDER BY created_at DESC`,
		repairColumns, strings.Join(clauses, " AND "))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepairs(rows)
}

func (r *repairTicketRepository) UpdateStatus(ctx context.Context, id string, update RepairStatusUpdate) error {
	const query = `
        UPDATE repair_tickets SET status=$1,
            repair_action=COALESCE($2, repair_action),
            qc_passed=COALESCE($3, qc_passed),
            completed_at=COALESCE($4, completed_at),
            updated_at=NOW()
        WHERE id=$5 AND status=$6 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query,
		update.Status,
		update.RepairAction,
		update.QCPassed,
		update.CompletedAt,
		id,
		update.ExpectedStatus,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRepairs(rows rowScanner) ([]domain.RepairTicket, error) {
	var result []domain.RepairTicket
	for rows.Next() {
		var repair domain.RepairTicket
		if err := rows.Scan(
			&repair.ID,
			&repair.CassetteID,
			&repair.Status,
			&repair.RepairAction,
			&repair.QCPassed,
			&repair.CreatedAt,
			&repair.UpdatedAt,
			&repair.CompletedAt,
			&repair.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, repair)
	}
	return result, rows.Err()
}
