package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// TicketHistoryRepository appends and reads a ticket's audit trail. Entries
// are never updated.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

// Create stores the entry and fills in its generated id and timestamp.
func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id::text, created_at`
	err := r.db.QueryRow(ctx, query,
		history.TicketID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s history for ticket %s: %w", history.ChangeType, history.TicketID, err)
	}
	return nil
}

// ListByTicket returns entries oldest first. Columns follow the field order
// of domain.TicketHistory.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT id::text, ticket_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE ticket_id = $1
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list history for ticket %s: %w", ticketID, err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TicketHistory])
}
