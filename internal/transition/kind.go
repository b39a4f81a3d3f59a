// Package transition holds the status state machines for tickets, cassettes,
// repair tickets and preventive maintenance tasks.
//
// Every legal edge lives in a static table. Guards can only narrow what a
// table allows; a transition the table does not list is rejected before any
// guard runs.
package transition

import "strings"

// Kind tags which state machine a request targets.
type Kind string

const (
	KindTicket       Kind = "ticket"
	KindCassette     Kind = "cassette"
	KindRepairTicket Kind = "repair_ticket"
	KindMaintenance  Kind = "preventive_maintenance"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindTicket, KindCassette, KindRepairTicket, KindMaintenance}
}

// ParseKind accepts the canonical names plus a few short aliases.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ticket", "tickets":
		return KindTicket, true
	case "cassette", "cassettes":
		return KindCassette, true
	case "repair_ticket", "repair-ticket", "repair", "repairs":
		return KindRepairTicket, true
	case "preventive_maintenance", "maintenance", "pm":
		return KindMaintenance, true
	}
	return "", false
}
