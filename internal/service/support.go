package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
)

// Actor identifies who asked for a change.
type Actor struct {
	Type domain.SubjectType
	ID   *string
	Role domain.OrgRole
}

// StaffActor builds an actor for an authenticated caller.
func StaffActor(id string, role domain.OrgRole) Actor {
	return Actor{Type: domain.SubjectTypeStaff, ID: &id, Role: role}
}

// SystemActor is the actor for automated changes.
func SystemActor() Actor {
	return Actor{Type: domain.SubjectTypeSystem}
}

func (a Actor) event() events.Actor {
	return events.Actor{Type: a.Type, StaffID: a.ID, Role: a.Role}
}

type publisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
			zap.Error(err))
	}
}

// inTx runs fn inside a unit of work when a transactor is configured and
// against store directly otherwise.
func inTx(ctx context.Context, tx repository.Transactor, store *repository.Store, fn func(ctx context.Context, store *repository.Store) error) error {
	if tx == nil {
		return fn(ctx, store)
	}
	return tx.WithinTx(ctx, fn)
}

// ticketStatusUpdate stamps resolvedAt when entering RESOLVED and clears it
// when the ticket goes back to work.
func ticketStatusUpdate(current, target domain.TicketStatus, now time.Time) repository.TicketStatusUpdate {
	update := repository.TicketStatusUpdate{Status: target, ExpectedStatus: current}
	switch {
	case target == domain.TicketStatusResolved:
		update.ResolvedAt = &now
	case current == domain.TicketStatusResolved && target == domain.TicketStatusInProgress:
		update.ClearResolvedAt = true
	}
	return update
}

func historyEntry(actor Actor, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) *domain.TicketHistory {
	return &domain.TicketHistory{
		TicketID:      ticketID,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
}

func cassetteIDs(cassettes []domain.Cassette) []string {
	ids := make([]string, len(cassettes))
	for i, c := range cassettes {
		ids[i] = c.ID
	}
	return ids
}

func serials(cassettes []domain.Cassette) []string {
	out := make([]string, len(cassettes))
	for i, c := range cassettes {
		out[i] = c.SerialNumber
	}
	return out
}

func orDefault(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func orClock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
