package transition

import "github.com/spec-kit/cassette-service/internal/domain"

var ticketTable = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen: {
		domain.TicketStatusPendingApproval,
		domain.TicketStatusInDelivery,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusPendingApproval: {
		domain.TicketStatusApprovedOnSite,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusApprovedOnSite: {
		domain.TicketStatusInProgress,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusInDelivery: {
		domain.TicketStatusReceived,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusReceived: {
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusResolved,
		domain.TicketStatusCancelled,
	},
	domain.TicketStatusResolved: {
		domain.TicketStatusClosed,
		domain.TicketStatusInProgress,
	},
	domain.TicketStatusClosed:    {},
	domain.TicketStatusCancelled: {},
}

var cassetteTable = map[domain.CassetteStatus][]domain.CassetteStatus{
	domain.CassetteStatusOK: {
		domain.CassetteStatusBad,
	},
	domain.CassetteStatusBad: {
		domain.CassetteStatusInTransitToRC,
		domain.CassetteStatusInRepair,
		domain.CassetteStatusScrapped,
	},
	domain.CassetteStatusInTransitToRC: {
		domain.CassetteStatusInRepair,
	},
	domain.CassetteStatusInRepair: {
		domain.CassetteStatusReadyForPickup,
		domain.CassetteStatusOK,
		domain.CassetteStatusScrapped,
	},
	domain.CassetteStatusReadyForPickup: {
		domain.CassetteStatusInTransitToPengelola,
	},
	domain.CassetteStatusInTransitToPengelola: {
		domain.CassetteStatusOK,
	},
	// Only reachable for a replacement record; see cassetteGuard.
	domain.CassetteStatusScrapped: {
		domain.CassetteStatusOK,
	},
}

var repairTable = map[domain.RepairStatus][]domain.RepairStatus{
	domain.RepairStatusReceived: {
		domain.RepairStatusDiagnosing,
		domain.RepairStatusOnProgress,
		domain.RepairStatusScrapped,
	},
	domain.RepairStatusDiagnosing: {
		domain.RepairStatusOnProgress,
		domain.RepairStatusCompleted,
		domain.RepairStatusScrapped,
	},
	domain.RepairStatusOnProgress: {
		domain.RepairStatusCompleted,
		domain.RepairStatusScrapped,
	},
	domain.RepairStatusCompleted: {},
	domain.RepairStatusScrapped:  {},
}

var maintenanceTable = map[domain.PMStatus][]domain.PMStatus{
	domain.PMStatusScheduled: {
		domain.PMStatusInProgress,
		domain.PMStatusCancelled,
		domain.PMStatusRescheduled,
	},
	domain.PMStatusInProgress: {
		domain.PMStatusCompleted,
		domain.PMStatusCancelled,
		domain.PMStatusRescheduled,
	},
	domain.PMStatusRescheduled: {
		domain.PMStatusScheduled,
		domain.PMStatusInProgress,
		domain.PMStatusCancelled,
	},
	domain.PMStatusCompleted: {},
	domain.PMStatusCancelled: {},
}
