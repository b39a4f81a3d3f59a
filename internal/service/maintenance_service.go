package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/domain"
	"github.com/spec-kit/cassette-service/internal/events"
	"github.com/spec-kit/cassette-service/internal/repository"
	"github.com/spec-kit/cassette-service/internal/transition"
)

// MaintenanceService coordinates preventive maintenance visits.
type MaintenanceService struct {
	store  *repository.Store
	logger *zap.Logger
	now    func() time.Time
	events publisher
}

// MaintenanceDependencies bundles collaborators for the maintenance service.
type MaintenanceDependencies struct {
	Store      *repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(deps MaintenanceDependencies) *MaintenanceService {
	logger := orDefault(deps.Logger)
	now := orClock(deps.Clock)
	return &MaintenanceService{
		store:  deps.Store,
		logger: logger,
		now:    now,
		events: publisher{dispatcher: deps.Dispatcher, logger: logger, now: now},
	}
}

// GetMaintenance loads a maintenance record.
func (s *MaintenanceService) GetMaintenance(ctx context.Context, id string) (*domain.PreventiveMaintenance, error) {
	return s.store.Maintenance.GetByID(ctx, id)
}

// UpdateStatus applies a maintenance transition.
func (s *MaintenanceService) UpdateStatus(ctx context.Context, actor Actor, id string, target domain.PMStatus) (*domain.PreventiveMaintenance, error) {
	pm, err := s.store.Maintenance.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition.Maintenance.Validate(pm.Status, target, transition.NoContext{}); err != nil {
		return nil, err
	}

	var completedAt *time.Time
	if target == domain.PMStatusCompleted {
		now := s.now()
		completedAt = &now
	}
	if err := s.store.Maintenance.UpdateStatus(ctx, pm.ID, target, pm.Status, completedAt); err != nil {
		return nil, err
	}
	updated, err := s.store.Maintenance.GetByID(ctx, pm.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance status changed",
		zap.String("maintenance_id", pm.ID),
		zap.String("old_status", string(pm.Status)),
		zap.String("new_status", string(target)))
	s.events.publish(ctx, events.Event{
		Type:     events.EventMaintenanceStatusChanged,
		EntityID: pm.ID,
		Actor:    actor.event(),
		Payload: events.StatusChangedPayload{
			OldStatus: string(pm.Status),
			NewStatus: string(target),
		},
	})
	return updated, nil
}
