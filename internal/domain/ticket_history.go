package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus         TicketChangeType = "STATUS_CHANGE"
	ChangeTypeReconciled     TicketChangeType = "STATUS_RECONCILED"
	ChangeTypeCassettePickup TicketChangeType = "CASSETTE_PICKUP"
	ChangeTypeCassetteReturn TicketChangeType = "CASSETTE_RETURN"
	ChangeTypeReplacement    TicketChangeType = "CASSETTE_REPLACEMENT"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID            string
	TicketID      string
	ChangedByType SubjectType
	ChangedByID   *string
	ChangeType    TicketChangeType
	OldValue      map[string]any
	NewValue      map[string]any
	CreatedAt     time.Time
}
