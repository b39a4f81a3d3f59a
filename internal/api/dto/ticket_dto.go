package dto

import (
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// UpdateStatusRequest is the body of every PATCH .../status route.
type UpdateStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// TicketResponse represents a ticket with its resolved cassette set.
type TicketResponse struct {
	ID             string                 `json:"id"`
	Number         string                 `json:"number"`
	Status         domain.TicketStatus    `json:"status"`
	RepairLocation *domain.RepairLocation `json:"repair_location"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	ResolvedAt     *time.Time             `json:"resolved_at"`
	HasDelivery    bool                   `json:"has_delivery"`
	HasReturn      bool                   `json:"has_return"`
	Cassettes      []CassetteResponse     `json:"cassettes"`
}

// TicketHistoryResponse represents one audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.SubjectType      `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id"`
	OldValue      map[string]any          `json:"old_value"`
	NewValue      map[string]any          `json:"new_value"`
	CreatedAt     time.Time               `json:"created_at"`
}

// PickupReadinessResponse partitions a ticket's cassettes for pickup.
type PickupReadinessResponse struct {
	CanPickup        bool               `json:"can_pickup"`
	ReadyCount       int                `json:"ready_count"`
	ScrappedCount    int                `json:"scrapped_count"`
	OtherStatusCount int                `json:"other_status_count"`
	ToPickup         []CassetteResponse `json:"to_pickup"`
	ToDispose        []CassetteResponse `json:"to_dispose"`
	Blocking         []CassetteResponse `json:"blocking"`
	Reason           string             `json:"reason,omitempty"`
}

// ReturnReceiptResponse reports which cassettes a receipt covered.
type ReturnReceiptResponse struct {
	InTransitCount int                `json:"in_transit_count"`
	Received       []CassetteResponse `json:"received"`
	Excluded       []CassetteResponse `json:"excluded"`
}

// ReplacementItem requests a replacement for one scrapped cassette.
type ReplacementItem struct {
	CassetteID      string `json:"cassette_id"`
	NewSerialNumber string `json:"new_serial_number"`
}

// ReplacementsRequest payload.
type ReplacementsRequest struct {
	Items []ReplacementItem `json:"items"`
}

// ReplacementResponse pairs a scrapped cassette with its replacement.
type ReplacementResponse struct {
	Original    CassetteResponse `json:"original"`
	Replacement CassetteResponse `json:"replacement"`
}
