package memory

import (
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// PutCassette inserts or replaces a cassette.
func (db *DB) PutCassette(c domain.Cassette) {
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.cassettes[c.ID] = c
		return nil
	})
}

// PutTicket inserts or replaces a ticket. Child associations on t are
// ignored; use LinkCassettes, PutDelivery and PutReturn.
func (db *DB) PutTicket(t domain.Ticket) {
	t.CassetteLinks = nil
	t.Cassette = nil
	t.Delivery = nil
	t.Return = nil
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.tickets[t.ID] = t
		return nil
	})
}

// LinkCassettes appends cassettes to a ticket's multi-cassette join.
func (db *DB) LinkCassettes(ticketID string, cassetteIDs ...string) {
	_ = db.write(func(d *dataset, _ time.Time) error {
		for _, id := range cassetteIDs {
			d.links[ticketID] = append(d.links[ticketID], domain.CassetteLink{TicketID: ticketID, CassetteID: id})
		}
		return nil
	})
}

// PutDelivery records a delivery for its ticket.
func (db *DB) PutDelivery(delivery domain.Delivery) {
	delivery.Cassette = nil
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.deliveries[delivery.TicketID] = delivery
		return nil
	})
}

// PutReturn records a return shipment for its ticket.
func (db *DB) PutReturn(ret domain.Return) {
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.returns[ret.TicketID] = ret
		return nil
	})
}

// PutRepair inserts or replaces a repair ticket.
func (db *DB) PutRepair(r domain.RepairTicket) {
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.repairs[r.ID] = r
		return nil
	})
}

// PutMaintenance inserts or replaces a preventive maintenance task.
func (db *DB) PutMaintenance(pm domain.PreventiveMaintenance) {
	_ = db.write(func(d *dataset, _ time.Time) error {
		d.maintenance[pm.ID] = pm
		return nil
	})
}

// Ticket returns the stored ticket row without children.
func (db *DB) Ticket(id string) (domain.Ticket, bool) {
	var t domain.Ticket
	var ok bool
	db.read(func(d *dataset) { t, ok = d.tickets[id] })
	return t, ok
}

// Cassette returns the stored cassette.
func (db *DB) Cassette(id string) (domain.Cassette, bool) {
	var c domain.Cassette
	var ok bool
	db.read(func(d *dataset) { c, ok = d.cassettes[id] })
	return c, ok
}

// Cassettes returns every stored cassette.
func (db *DB) Cassettes() []domain.Cassette {
	var result []domain.Cassette
	db.read(func(d *dataset) {
		for _, c := range d.cassettes {
			result = append(result, c)
		}
	})
	return result
}

// Repair returns the stored repair ticket.
func (db *DB) Repair(id string) (domain.RepairTicket, bool) {
	var r domain.RepairTicket
	var ok bool
	db.read(func(d *dataset) { r, ok = d.repairs[id] })
	return r, ok
}

// Maintenance returns the stored preventive maintenance task.
func (db *DB) Maintenance(id string) (domain.PreventiveMaintenance, bool) {
	var pm domain.PreventiveMaintenance
	var ok bool
	db.read(func(d *dataset) { pm, ok = d.maintenance[id] })
	return pm, ok
}

// History returns the audit entries recorded for a ticket.
func (db *DB) History(ticketID string) []domain.TicketHistory {
	var result []domain.TicketHistory
	db.read(func(d *dataset) {
		for _, h := range d.history {
			if h.TicketID == ticketID {
				result = append(result, h)
			}
		}
	})
	return result
}
