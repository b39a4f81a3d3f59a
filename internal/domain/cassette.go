package domain

import "time"

// CassetteStatus enumerates physical cassette states.
type CassetteStatus string

const (
	CassetteStatusOK                   CassetteStatus = "OK"
	CassetteStatusBad                  CassetteStatus = "BAD"
	CassetteStatusInTransitToRC        CassetteStatus = "IN_TRANSIT_TO_RC"
	CassetteStatusInRepair             CassetteStatus = "IN_REPAIR"
	CassetteStatusReadyForPickup       CassetteStatus = "READY_FOR_PICKUP"
	CassetteStatusInTransitToPengelola CassetteStatus = "IN_TRANSIT_TO_PENGELOLA"
	CassetteStatusScrapped             CassetteStatus = "SCRAPPED"
)

// Cassette is a cash-handling unit. ReplacementTicketID is set once the
// cassette has been substituted by a new record.
type Cassette struct {
	ID                  string
	SerialNumber        string
	Status              CassetteStatus
	ReplacementTicketID *string
	ReplacedByID        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// QCResult is the tri-state quality-control outcome of a repair.
type QCResult int

const (
	QCUnknown QCResult = iota
	QCPassed
	QCFailed
)

// QCFromBool maps a nullable flag to a QCResult.
func QCFromBool(v *bool) QCResult {
	switch {
	case v == nil:
		return QCUnknown
	case *v:
		return QCPassed
	default:
		return QCFailed
	}
}

func (q QCResult) String() string {
	switch q {
	case QCPassed:
		return "PASSED"
	case QCFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
