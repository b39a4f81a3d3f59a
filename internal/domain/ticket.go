package domain

import "time"

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusOpen            TicketStatus = "OPEN"
	TicketStatusPendingApproval TicketStatus = "PENDING_APPROVAL"
	TicketStatusApprovedOnSite  TicketStatus = "APPROVED_ON_SITE"
	TicketStatusInDelivery      TicketStatus = "IN_DELIVERY"
	TicketStatusReceived        TicketStatus = "RECEIVED"
	TicketStatusInProgress      TicketStatus = "IN_PROGRESS"
	TicketStatusResolved        TicketStatus = "RESOLVED"
	TicketStatusClosed          TicketStatus = "CLOSED"
	TicketStatusCancelled       TicketStatus = "CANCELLED"
)

// RepairLocation tells where a ticket's cassettes are repaired.
type RepairLocation string

const (
	RepairLocationOnSite RepairLocation = "ON_SITE"
	RepairLocationAtRC   RepairLocation = "AT_RC"
)

// Ticket is the service order aggregate. A ticket references its cassettes
// through CassetteLinks, through the delivery record, or (legacy) directly.
type Ticket struct {
	ID             string
	Number         string
	Status         TicketStatus
	RepairLocation *RepairLocation
	CassetteID     *string
	ReportedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time

	CassetteLinks []CassetteLink
	Cassette      *Cassette
	Delivery      *Delivery
	Return        *Return
}

// ScopeStart returns the instant from which repair tickets count toward this ticket.
func (t *Ticket) ScopeStart() time.Time {
	if !t.CreatedAt.IsZero() {
		return t.CreatedAt
	}
	if t.ReportedAt != nil {
		return *t.ReportedAt
	}
	return time.Time{}
}

// Cassettes resolves the cassette set using the first populated association:
// multi-cassette links, then the delivery cassette, then the direct reference.
func (t *Ticket) Cassettes() []Cassette {
	if len(t.CassetteLinks) > 0 {
		result := make([]Cassette, 0, len(t.CassetteLinks))
		for _, link := range t.CassetteLinks {
			result = append(result, link.Cassette)
		}
		return result
	}
	if t.Delivery != nil && t.Delivery.Cassette != nil {
		return []Cassette{*t.Delivery.Cassette}
	}
	if t.Cassette != nil {
		return []Cassette{*t.Cassette}
	}
	return nil
}

// CassetteLink joins a ticket to one of its cassettes.
type CassetteLink struct {
	TicketID           string
	CassetteID         string
	RequestReplacement bool
	Cassette           Cassette
}

// Delivery records a shipment of cassettes to the repair center.
type Delivery struct {
	ID         string
	TicketID   string
	CassetteID *string
	Cassette   *Cassette
	ShippedAt  time.Time
}

// Return records the shipment back to the operator.
type Return struct {
	ID         string
	TicketID   string
	ShippedAt  time.Time
	ReceivedAt *time.Time
}

// TicketSummary is the slim projection used by batch scans.
type TicketSummary struct {
	ID        string
	Number    string
	Status    TicketStatus
	UpdatedAt time.Time
}
