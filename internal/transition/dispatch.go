package transition

import (
	"fmt"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// Context bundles the per-kind guard contexts for the kind-dispatched API.
// Only the field matching the requested kind is read.
type Context struct {
	Ticket   TicketContext
	Cassette CassetteContext
	Repair   RepairContext
}

// AllowedNextStates returns the legal next states for a kind/state pair.
func AllowedNextStates(kind Kind, current string) ([]string, error) {
	switch kind {
	case KindTicket:
		return stringify(Ticket.AllowedNextStates(domain.TicketStatus(current))), nil
	case KindCassette:
		return stringify(Cassette.AllowedNextStates(domain.CassetteStatus(current))), nil
	case KindRepairTicket:
		return stringify(Repair.AllowedNextStates(domain.RepairStatus(current))), nil
	case KindMaintenance:
		return stringify(Maintenance.AllowedNextStates(domain.PMStatus(current))), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// States returns every state of a kind.
func States(kind Kind) ([]string, error) {
	switch kind {
	case KindTicket:
		return stringify(Ticket.States()), nil
	case KindCassette:
		return stringify(Cassette.States()), nil
	case KindRepairTicket:
		return stringify(Repair.States()), nil
	case KindMaintenance:
		return stringify(Maintenance.States()), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Known reports whether state is one of kind's states.
func Known(kind Kind, state string) (bool, error) {
	switch kind {
	case KindTicket:
		return Ticket.Known(domain.TicketStatus(state)), nil
	case KindCassette:
		return Cassette.Known(domain.CassetteStatus(state)), nil
	case KindRepairTicket:
		return Repair.Known(domain.RepairStatus(state)), nil
	case KindMaintenance:
		return Maintenance.Known(domain.PMStatus(state)), nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// CanTransition reports whether current -> target is legal for the kind.
func CanTransition(kind Kind, current, target string, c Context) bool {
	return ValidateTransition(kind, current, target, c) == nil
}

// ValidateTransition returns nil, ErrUnknownKind, or an *InvalidTransitionError.
func ValidateTransition(kind Kind, current, target string, c Context) error {
	switch kind {
	case KindTicket:
		return Ticket.Validate(domain.TicketStatus(current), domain.TicketStatus(target), c.Ticket)
	case KindCassette:
		return Cassette.Validate(domain.CassetteStatus(current), domain.CassetteStatus(target), c.Cassette)
	case KindRepairTicket:
		return Repair.Validate(domain.RepairStatus(current), domain.RepairStatus(target), c.Repair)
	case KindMaintenance:
		return Maintenance.Validate(domain.PMStatus(current), domain.PMStatus(target), NoContext{})
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func stringify[S ~string](states []S) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
