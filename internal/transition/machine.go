package transition

import (
	"slices"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// Guard narrows a transition the table already allows.
type Guard[S ~string, C any] func(current, target S, c C) bool

// Machine is one entity kind's table plus its guard.
type Machine[S ~string, C any] struct {
	kind  Kind
	table map[S][]S
	guard Guard[S, C]
}

var (
	Ticket      = Machine[domain.TicketStatus, TicketContext]{kind: KindTicket, table: ticketTable, guard: ticketGuard}
	Cassette    = Machine[domain.CassetteStatus, CassetteContext]{kind: KindCassette, table: cassetteTable, guard: cassetteGuard}
	Repair      = Machine[domain.RepairStatus, RepairContext]{kind: KindRepairTicket, table: repairTable, guard: repairGuard}
	Maintenance = Machine[domain.PMStatus, NoContext]{kind: KindMaintenance, table: maintenanceTable}
)

// States lists every known state in a stable order.
func (m Machine[S, C]) States() []S {
	states := make([]S, 0, len(m.table))
	for state := range m.table {
		states = append(states, state)
	}
	slices.Sort(states)
	return states
}

// Known reports whether the state exists in the table.
func (m Machine[S, C]) Known(state S) bool {
	_, ok := m.table[state]
	return ok
}

// AllowedNextStates returns a copy of the table row. Unknown and terminal
// states yield an empty slice.
func (m Machine[S, C]) AllowedNextStates(current S) []S {
	return slices.Clone(m.table[current])
}

// IsTerminal reports whether a known state has no outgoing edges.
func (m Machine[S, C]) IsTerminal(state S) bool {
	next, ok := m.table[state]
	return ok && len(next) == 0
}

// CanTransition applies the table lookup first and the guard second.
func (m Machine[S, C]) CanTransition(current, target S, c C) bool {
	if !slices.Contains(m.table[current], target) {
		return false
	}
	if m.guard == nil {
		return true
	}
	return m.guard(current, target, c)
}

// Validate is CanTransition returning an *InvalidTransitionError on rejection.
func (m Machine[S, C]) Validate(current, target S, c C) error {
	if m.CanTransition(current, target, c) {
		return nil
	}
	allowed := m.table[current]
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return &InvalidTransitionError{
		Kind:          m.kind,
		Current:       string(current),
		Target:        string(target),
		Allowed:       names,
		GuardRejected: slices.Contains(allowed, target),
	}
}
