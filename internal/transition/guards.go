package transition

import "github.com/spec-kit/cassette-service/internal/domain"

// TicketContext carries the related facts ticket guards read.
type TicketContext struct {
	RepairLocation *domain.RepairLocation
	HasDelivery    bool
	HasReturn      bool
	// AllRepairsCompleted is nil when the caller did not compute it. A nil
	// value is treated as true so single-cassette callers that never pass the
	// flag keep resolving; callers with multiple cassettes must set it.
	AllRepairsCompleted *bool
}

func (c TicketContext) onSite() bool {
	return c.RepairLocation != nil && *c.RepairLocation == domain.RepairLocationOnSite
}

func (c TicketContext) repairsCompleted() bool {
	if c.AllRepairsCompleted == nil {
		return true
	}
	return *c.AllRepairsCompleted
}

// CassetteContext carries the related facts cassette guards read.
type CassetteContext struct {
	HasActiveTicket bool
	QC              domain.QCResult
	IsReplacement   bool
}

// RepairContext carries the related facts repair ticket guards read.
type RepairContext struct {
	HasRepairAction bool
	QC              domain.QCResult
}

// NoContext is the context type of machines without guards.
type NoContext struct{}

func ticketGuard(current, target domain.TicketStatus, c TicketContext) bool {
	switch target {
	case domain.TicketStatusPendingApproval:
		return c.onSite()
	case domain.TicketStatusApprovedOnSite:
		return c.onSite() && current == domain.TicketStatusPendingApproval
	case domain.TicketStatusInDelivery:
		return c.HasDelivery
	case domain.TicketStatusInProgress:
		// on-site repairs skip delivery entirely
		return true
	case domain.TicketStatusResolved:
		return c.repairsCompleted()
	}
	return true
}

func cassetteGuard(current, target domain.CassetteStatus, c CassetteContext) bool {
	switch target {
	case domain.CassetteStatusInTransitToRC:
		return c.HasActiveTicket
	case domain.CassetteStatusReadyForPickup:
		return c.QC == domain.QCPassed
	case domain.CassetteStatusOK:
		switch current {
		case domain.CassetteStatusInRepair:
			return c.QC == domain.QCPassed
		case domain.CassetteStatusScrapped:
			return c.IsReplacement
		}
		return true
	case domain.CassetteStatusScrapped:
		return c.QC != domain.QCPassed
	}
	return true
}

func repairGuard(_, target domain.RepairStatus, c RepairContext) bool {
	switch target {
	case domain.RepairStatusCompleted:
		return c.HasRepairAction
	case domain.RepairStatusScrapped:
		return c.QC != domain.QCPassed
	}
	return true
}
