package aggregate

import (
	"sort"
	"time"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// RepairCompletion summarizes how far a ticket's repairs have progressed.
type RepairCompletion struct {
	Total          int
	Completed      int
	Replaced       int
	Pending        int
	AllCompleted   bool
	HasRepairs     bool
	MissingSerials []string
	Latest         map[string]domain.RepairTicket
}

// InScope drops soft-deleted repair tickets and those created before from.
// A zero from keeps every live record.
func InScope(repairs []domain.RepairTicket, from time.Time) []domain.RepairTicket {
	scoped := make([]domain.RepairTicket, 0, len(repairs))
	for _, r := range repairs {
		if r.DeletedAt != nil {
			continue
		}
		if !from.IsZero() && r.CreatedAt.Before(from) {
			continue
		}
		scoped = append(scoped, r)
	}
	return scoped
}

// LatestRepairs picks one repair ticket per cassette. The first pass keeps the
// newest record; the second promotes a COMPLETED record over a newer one that
// is not completed.
func LatestRepairs(repairs []domain.RepairTicket) map[string]domain.RepairTicket {
	ordered := make([]domain.RepairTicket, len(repairs))
	copy(ordered, repairs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	latest := make(map[string]domain.RepairTicket, len(ordered))
	for _, r := range ordered {
		if _, seen := latest[r.CassetteID]; !seen {
			latest[r.CassetteID] = r
		}
	}
	for _, r := range ordered {
		if r.Status != domain.RepairStatusCompleted {
			continue
		}
		if current := latest[r.CassetteID]; current.Status != domain.RepairStatusCompleted {
			latest[r.CassetteID] = r
		}
	}
	return latest
}

// Completion counts cassettes whose latest repair is COMPLETED. A SCRAPPED
// cassette already replaced on ticketID is settled as Replaced; its
// replacement is a new record outside the ticket's repair cycle.
func Completion(ticketID string, cassettes []domain.Cassette, repairs []domain.RepairTicket) RepairCompletion {
	latest := LatestRepairs(repairs)
	result := RepairCompletion{
		Total:  len(cassettes),
		Latest: latest,
	}
	for _, c := range cassettes {
		r, ok := latest[c.ID]
		if ok {
			result.HasRepairs = true
		}
		if ok && r.Status == domain.RepairStatusCompleted {
			result.Completed++
			continue
		}
		if replacedOn(c, ticketID) {
			result.Replaced++
			continue
		}
		result.MissingSerials = append(result.MissingSerials, label(c))
	}
	result.Pending = result.Total - result.Completed - result.Replaced
	result.AllCompleted = result.Pending == 0
	return result
}

func replacedOn(c domain.Cassette, ticketID string) bool {
	return c.Status == domain.CassetteStatusScrapped &&
		c.ReplacementTicketID != nil &&
		*c.ReplacementTicketID == ticketID
}
