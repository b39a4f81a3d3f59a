package domain

import "time"

// RepairStatus enumerates states of a single repair cycle.
type RepairStatus string

const (
	RepairStatusReceived   RepairStatus = "RECEIVED"
	RepairStatusDiagnosing RepairStatus = "DIAGNOSING"
	RepairStatusOnProgress RepairStatus = "ON_PROGRESS"
	RepairStatusCompleted  RepairStatus = "COMPLETED"
	RepairStatusScrapped   RepairStatus = "SCRAPPED"
)

// RepairTicket is one repair cycle for one cassette.
type RepairTicket struct {
	ID           string
	CassetteID   string
	Status       RepairStatus
	RepairAction *string
	QCPassed     *bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	DeletedAt    *time.Time
}

// QC returns the tri-state QC outcome.
func (r *RepairTicket) QC() QCResult {
	return QCFromBool(r.QCPassed)
}
