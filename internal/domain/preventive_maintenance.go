package domain

import "time"

// PMStatus enumerates preventive maintenance states.
type PMStatus string

const (
	PMStatusScheduled   PMStatus = "SCHEDULED"
	PMStatusInProgress  PMStatus = "IN_PROGRESS"
	PMStatusCompleted   PMStatus = "COMPLETED"
	PMStatusCancelled   PMStatus = "CANCELLED"
	PMStatusRescheduled PMStatus = "RESCHEDULED"
)

// PreventiveMaintenance is a scheduled maintenance task.
type PreventiveMaintenance struct {
	ID          string
	Number      string
	Status      PMStatus
	ScheduledAt time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
