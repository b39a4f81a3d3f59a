package dto

import (
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// CassetteStatusRequest payload.
type CassetteStatusRequest struct {
	Status   string `json:"status"`
	QCPassed *bool  `json:"qc_passed"`
}

// RepairStatusRequest payload.
type RepairStatusRequest struct {
	Status       string  `json:"status"`
	RepairAction *string `json:"repair_action"`
	QCPassed     *bool   `json:"qc_passed"`
}

// CassetteResponse represents a cassette.
type CassetteResponse struct {
	ID                  string                `json:"id"`
	SerialNumber        string                `json:"serial_number"`
	Status              domain.CassetteStatus `json:"status"`
	ReplacementTicketID *string               `json:"replacement_ticket_id,omitempty"`
	ReplacedByID        *string               `json:"replaced_by_id,omitempty"`
}

// RepairTicketResponse represents a repair ticket.
type RepairTicketResponse struct {
	ID           string              `json:"id"`
	CassetteID   string              `json:"cassette_id"`
	Status       domain.RepairStatus `json:"status"`
	RepairAction *string             `json:"repair_action"`
	QCPassed     *bool               `json:"qc_passed"`
	CreatedAt    time.Time           `json:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at"`
}

// RepairUpdateResponse reports a repair change and what it cascaded into.
type RepairUpdateResponse struct {
	RepairTicket RepairTicketResponse `json:"repair_ticket"`
	Cassette     *CassetteResponse    `json:"cassette,omitempty"`
	Reconciled   any                  `json:"reconciled"`
}

// MaintenanceResponse represents a preventive maintenance task.
type MaintenanceResponse struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	Status      domain.PMStatus `json:"status"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}
