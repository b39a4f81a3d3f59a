package events

import (
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketReconciled         EventType = "ticket_reconciled"
	EventReconcileRejected        EventType = "ticket_reconcile_rejected"
	EventCassetteStatusChanged    EventType = "cassette_status_changed"
	EventCassetteReplaced         EventType = "cassette_replaced"
	EventRepairStatusChanged      EventType = "repair_status_changed"
	EventMaintenanceStatusChanged EventType = "maintenance_status_changed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    domain.SubjectType `json:"type"`
	StaffID *string            `json:"staff_id,omitempty"`
	Role    domain.OrgRole     `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	EntityID  string      `json:"entity_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StatusChangedPayload is shared by every status-change event.
type StatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Comment   string `json:"comment,omitempty"`
}

// ReconcileRejectedPayload describes a computed transition the validator refused.
type ReconcileRejectedPayload struct {
	CurrentStatus domain.TicketStatus `json:"current_status"`
	TargetStatus  domain.TicketStatus `json:"target_status"`
	Reason        string              `json:"reason"`
}

// CassetteReplacedPayload links a scrapped cassette to its replacement.
type CassetteReplacedPayload struct {
	OriginalID    string `json:"original_id"`
	ReplacementID string `json:"replacement_id"`
	SerialNumber  string `json:"serial_number"`
}
