package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/repository"
)

type ticketRepository struct {
	db *DB
}

func (r *ticketRepository) GetWithChildren(_ context.Context, id string) (*domain.Ticket, error) {
	var result *domain.Ticket
	r.db.read(func(d *dataset) {
		t, ok := d.tickets[id]
		if !ok {
			return
		}
		for _, link := range d.links[id] {
			if c, ok := d.cassettes[link.CassetteID]; ok {
				link.Cassette = c
				t.CassetteLinks = append(t.CassetteLinks, link)
			}
		}
		if delivery, ok := d.deliveries[id]; ok {
			if delivery.CassetteID != nil {
				if c, ok := d.cassettes[*delivery.CassetteID]; ok {
					delivery.Cassette = &c
				}
			}
			t.Delivery = &delivery
		}
		if ret, ok := d.returns[id]; ok {
			t.Return = &ret
		}
		if t.CassetteID != nil {
			if c, ok := d.cassettes[*t.CassetteID]; ok {
				t.Cassette = &c
			}
		}
		result = &t
	})
	if result == nil {
		return nil, repository.ErrNotFound
	}
	return result, nil
}

func (r *ticketRepository) UpdateStatus(_ context.Context, id string, update repository.TicketStatusUpdate) error {
	return r.db.write(func(d *dataset, now time.Time) error {
		t, ok := d.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		if t.Status != update.ExpectedStatus {
			return repository.ErrStatusConflict
		}
		t.Status = update.Status
		t.UpdatedAt = now
		switch {
		case update.ClearResolvedAt:
			t.ResolvedAt = nil
		case update.ResolvedAt != nil:
			at := *update.ResolvedAt
			t.ResolvedAt = &at
		}
		d.tickets[id] = t
		return nil
	})
}

func (r *ticketRepository) ListByStatus(_ context.Context, statuses []domain.TicketStatus, limit int) ([]domain.TicketSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	wanted := make(map[domain.TicketStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var result []domain.TicketSummary
	r.db.read(func(d *dataset) {
		for _, t := range d.tickets {
			if wanted[t.Status] {
				result = append(result, summarize(t))
			}
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *ticketRepository) ListByCassette(_ context.Context, cassetteID string, statuses []domain.TicketStatus) ([]domain.TicketSummary, error) {
	wanted := make(map[domain.TicketStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	var result []domain.TicketSummary
	r.db.read(func(d *dataset) {
		for id, t := range d.tickets {
			if !wanted[t.Status] {
				continue
			}
			if references(d, id, t, cassetteID) {
				result = append(result, summarize(t))
			}
		}
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func references(d *dataset, ticketID string, t domain.Ticket, cassetteID string) bool {
	for _, link := range d.links[ticketID] {
		if link.CassetteID == cassetteID {
			return true
		}
	}
	if delivery, ok := d.deliveries[ticketID]; ok && delivery.CassetteID != nil && *delivery.CassetteID == cassetteID {
		return true
	}
	return t.CassetteID != nil && *t.CassetteID == cassetteID
}

func (r *ticketRepository) MarkReturnReceived(_ context.Context, ticketID string, at time.Time) error {
	return r.db.write(func(d *dataset, _ time.Time) error {
		ret, ok := d.returns[ticketID]
		if !ok || ret.ReceivedAt != nil {
			return nil
		}
		ret.ReceivedAt = &at
		d.returns[ticketID] = ret
		return nil
	})
}

func summarize(t domain.Ticket) domain.TicketSummary {
	return domain.TicketSummary{ID: t.ID, Number: t.Number, Status: t.Status, UpdatedAt: t.UpdatedAt}
}

type cassetteRepository struct {
	db *DB
}

func (r *cassetteRepository) GetByID(_ context.Context, id string) (*domain.Cassette, error) {
	var result *domain.Cassette
	r.db.read(func(d *dataset) {
		if c, ok := d.cassettes[id]; ok {
			result = &c
		}
	})
	if result == nil {
		return nil, repository.ErrNotFound
	}
	return result, nil
}

func (r *cassetteRepository) UpdateStatus(_ context.Context, id string, status, expected domain.CassetteStatus) error {
	return r.db.write(func(d *dataset, now time.Time) error {
		c, ok := d.cassettes[id]
		if !ok {
			return repository.ErrNotFound
		}
		if c.Status != expected {
			return repository.ErrStatusConflict
		}
		c.Status = status
		c.UpdatedAt = now
		d.cassettes[id] = c
		return nil
	})
}

func (r *cassetteRepository) CreateReplacement(_ context.Context, original domain.Cassette, ticketID, serialNumber string) (*domain.Cassette, error) {
	var replacement *domain.Cassette
	err := r.db.write(func(d *dataset, now time.Time) error {
		old, ok := d.cassettes[original.ID]
		if !ok || old.Status != domain.CassetteStatusScrapped || old.ReplacementTicketID != nil {
			return repository.ErrStatusConflict
		}
		created := domain.Cassette{
			ID:           uuid.NewString(),
			SerialNumber: serialNumber,
			Status:       domain.CassetteStatusOK,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		d.cassettes[created.ID] = created

		tid := ticketID
		old.ReplacementTicketID = &tid
		old.ReplacedByID = &created.ID
		old.UpdatedAt = now
		d.cassettes[old.ID] = old
		replacement = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replacement, nil
}

type repairRepository struct {
	db *DB
}

func (r *repairRepository) GetByID(_ context.Context, id string) (*domain.RepairTicket, error) {
	var result *domain.RepairTicket
	r.db.read(func(d *dataset) {
		if rt, ok := d.repairs[id]; ok && rt.DeletedAt == nil {
			result = &rt
		}
	})
	if result == nil {
		return nil, repository.ErrNotFound
	}
	return result, nil
}

func (r *repairRepository) ListByCassettes(_ context.Context, cassetteIDs []string, createdFrom *time.Time) ([]domain.RepairTicket, error) {
	wanted := make(map[string]bool, len(cassetteIDs))
	for _, id := range cassetteIDs {
		wanted[id] = true
	}
	var result []domain.RepairTicket
	r.db.read(func(d *dataset) {
		for _, rt := range d.repairs {
			if !wanted[rt.CassetteID] || rt.DeletedAt != nil {
				continue
			}
			if createdFrom != nil && rt.CreatedAt.Before(*createdFrom) {
				continue
			}
			result = append(result, rt)
		}
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *repairRepository) UpdateStatus(_ context.Context, id string, update repository.RepairStatusUpdate) error {
	return r.db.write(func(d *dataset, now time.Time) error {
		rt, ok := d.repairs[id]
		if !ok || rt.DeletedAt != nil {
			return repository.ErrNotFound
		}
		if rt.Status != update.ExpectedStatus {
			return repository.ErrStatusConflict
		}
		rt.Status = update.Status
		if update.RepairAction != nil {
			rt.RepairAction = update.RepairAction
		}
		if update.QCPassed != nil {
			rt.QCPassed = update.QCPassed
		}
		if update.CompletedAt != nil {
			rt.CompletedAt = update.CompletedAt
		}
		rt.UpdatedAt = now
		d.repairs[id] = rt
		return nil
	})
}

type maintenanceRepository struct {
	db *DB
}

func (r *maintenanceRepository) GetByID(_ context.Context, id string) (*domain.PreventiveMaintenance, error) {
	var result *domain.PreventiveMaintenance
	r.db.read(func(d *dataset) {
		if pm, ok := d.maintenance[id]; ok {
			result = &pm
		}
	})
	if result == nil {
		return nil, repository.ErrNotFound
	}
	return result, nil
}

func (r *maintenanceRepository) UpdateStatus(_ context.Context, id string, status, expected domain.PMStatus, completedAt *time.Time) error {
	return r.db.write(func(d *dataset, now time.Time) error {
		pm, ok := d.maintenance[id]
		if !ok {
			return repository.ErrNotFound
		}
		if pm.Status != expected {
			return repository.ErrStatusConflict
		}
		pm.Status = status
		if completedAt != nil {
			pm.CompletedAt = completedAt
		}
		pm.UpdatedAt = now
		d.maintenance[id] = pm
		return nil
	})
}

type historyRepository struct {
	db *DB
}

func (r *historyRepository) Create(_ context.Context, history *domain.TicketHistory) error {
	return r.db.write(func(d *dataset, now time.Time) error {
		history.ID = uuid.NewString()
		history.CreatedAt = now
		d.history = append(d.history, *history)
		return nil
	})
}

func (r *historyRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.db.History(ticketID), nil
}
