package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// TicketStatusUpdate is a conditional status write. The update only applies
// while the stored status still equals ExpectedStatus.
type TicketStatusUpdate struct {
	Status          domain.TicketStatus
	ExpectedStatus  domain.TicketStatus
	ResolvedAt      *time.Time
	ClearResolvedAt bool
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	GetWithChildren(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, update TicketStatusUpdate) error
	ListByStatus(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.TicketSummary, error)
	// ListByCassette returns tickets in one of statuses that reference the
	// cassette through any association.
	ListByCassette(ctx context.Context, cassetteID string, statuses []domain.TicketStatus) ([]domain.TicketSummary, error)
	MarkReturnReceived(ctx context.Context, ticketID string, at time.Time) error
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) GetWithChildren(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, number, status, repair_location, cassette_id, reported_at, created_at, updated_at, resolved_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Status,
		&ticket.RepairLocation,
		&ticket.CassetteID,
		&ticket.ReportedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, translate(err)
	}

	links, err := r.listLinks(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("load cassette links: %w", err)
	}
	ticket.CassetteLinks = links

	if ticket.Delivery, err = r.getDelivery(ctx, ticket.ID); err != nil {
		return nil, fmt.Errorf("load delivery: %w", err)
	}
	if ticket.Return, err = r.getReturn(ctx, ticket.ID); err != nil {
		return nil, fmt.Errorf("load return: %w", err)
	}
	if ticket.CassetteID != nil {
		cassette, err := getCassette(ctx, r.db, *ticket.CassetteID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("load cassette: %w", err)
		}
		ticket.Cassette = cassette
	}
	return &ticket, nil
}

func (r *ticketRepository) listLinks(ctx context.Context, ticketID string) ([]domain.CassetteLink, error) {
	const query = `
        SELECT tc.ticket_id, tc.cassette_id, tc.request_replacement,
               c.id, c.serial_number, c.status, c.replacement_ticket_id, c.replaced_by_id, c.created_at, c.updated_at
        FROM ticket_cassettes tc
        JOIN cassettes c ON c.id = tc.cassette_id
        WHERE tc.ticket_id=$1
        ORDER BY tc.position ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.CassetteLink
	for rows.Next() {
		var link domain.CassetteLink
		if err := rows.Scan(
			&link.TicketID,
			&link.CassetteID,
			&link.RequestReplacement,
			&link.Cassette.ID,
			&link.Cassette.SerialNumber,
			&link.Cassette.Status,
			&link.Cassette.ReplacementTicketID,
			&link.Cassette.ReplacedByID,
			&link.Cassette.CreatedAt,
			&link.Cassette.UpdatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *ticketRepository) getDelivery(ctx context.Context, ticketID string) (*domain.Delivery, error) {
	const query = `SELECT id, ticket_id, cassette_id, shipped_at FROM deliveries WHERE ticket_id=$1`
	var delivery domain.Delivery
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&delivery.ID,
		&delivery.TicketID,
		&delivery.CassetteID,
		&delivery.ShippedAt,
	); err != nil {
		if err = translate(err); errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if delivery.CassetteID != nil {
		cassette, err := getCassette(ctx, r.db, *delivery.CassetteID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		delivery.Cassette = cassette
	}
	return &delivery, nil
}

func (r *ticketRepository) getReturn(ctx context.Context, ticketID string) (*domain.Return, error) {
	const query = `SELECT id, ticket_id, shipped_at, received_at FROM returns WHERE ticket_id=$1`
	var ret domain.Return
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&ret.ID,
		&ret.TicketID,
		&ret.ShippedAt,
		&ret.ReceivedAt,
	); err != nil {
		if err = translate(err); errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ret, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, update TicketStatusUpdate) error {
	query := `UPDATE tickets SET status=$1, updated_at=NOW()`
	args := []any{update.Status}
	switch {
	case update.ClearResolvedAt:
		query += `, resolved_at=NULL`
	case update.ResolvedAt != nil:
		args = append(args, *update.ResolvedAt)
		query += fmt.Sprintf(`, resolved_at=$%d`, len(args))
	}
	args = append(args, id, update.ExpectedStatus)
	query += fmt.Sprintf(` WHERE id=$%d AND status=$%d`, len(args)-1, len(args))

	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *ticketRepository) ListByStatus(ctx context.Context, statuses []domain.TicketStatus, limit int) ([]domain.TicketSummary, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT id, number, status, updated_at FROM tickets
             WHERE status IN (%s) ORDER BY updated_at DESC LIMIT %d`, strings.Join(placeholders, ","), limit)
	return r.listSummaries(ctx, query, args...)
}

func (r *ticketRepository) ListByCassette(ctx context.Context, cassetteID string, statuses []domain.TicketStatus) ([]domain.TicketSummary, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{cassetteID}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT DISTINCT t.id, t.number, t.status, t.updated_at FROM tickets t
             LEFT JOIN ticket_cassettes tc ON tc.ticket_id = t.id
             LEFT JOIN deliveries d ON d.ticket_id = t.id
             WHERE (tc.cassette_id=$1 OR d.cassette_id=$1 OR t.cassette_id=$1)
               AND t.status IN (%s)
             ORDER BY t.id`, strings.Join(placeholders, ","))
	return r.listSummaries(ctx, query, args...)
}

func (r *ticketRepository) listSummaries(ctx context.Context, query string, args ...any) ([]domain.TicketSummary, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketSummary
	for rows.Next() {
		var summary domain.TicketSummary
		if err := rows.Scan(&summary.ID, &summary.Number, &summary.Status, &summary.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, summary)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MarkReturnReceived(ctx context.Context, ticketID string, at time.Time) error {
	const query = `UPDATE returns SET received_at=$1 WHERE ticket_id=$2 AND received_at IS NULL`
	_, err := r.db.Exec(ctx, query, at, ticketID)
	return err
}
