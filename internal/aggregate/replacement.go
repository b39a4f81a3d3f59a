package aggregate

import (
	"errors"
	"fmt"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// ErrInvalidReplacement matches every *InvalidReplacementError via errors.Is.
var ErrInvalidReplacement = errors.New("invalid replacement")

// ReplacementRequest is one cassette detail of a replacement workflow.
type ReplacementRequest struct {
	Cassette           domain.Cassette
	RequestReplacement bool
}

// InvalidReplacementError aborts a replacement workflow.
type InvalidReplacementError struct {
	CassetteID   string
	SerialNumber string
	Status       domain.CassetteStatus
	// ReplacementTicketID is set when the cassette was already replaced.
	ReplacementTicketID *string
}

func (e *InvalidReplacementError) Error() string {
	name := e.SerialNumber
	if name == "" {
		name = e.CassetteID
	}
	if e.ReplacementTicketID != nil {
		return fmt.Sprintf("cassette %s was already replaced by ticket %s", name, *e.ReplacementTicketID)
	}
	return fmt.Sprintf("cassette %s cannot be replaced: status is %s, must be %s", name, e.Status, domain.CassetteStatusScrapped)
}

func (e *InvalidReplacementError) Is(target error) bool {
	return target == ErrInvalidReplacement
}

func (e *InvalidReplacementError) DomainCode() string {
	return "INVALID_REPLACEMENT"
}

func (e *InvalidReplacementError) DomainDetails() map[string]any {
	details := map[string]any{
		"cassette_id":   e.CassetteID,
		"serial_number": e.SerialNumber,
		"status":        string(e.Status),
	}
	if e.ReplacementTicketID != nil {
		details["replacement_ticket_id"] = *e.ReplacementTicketID
	}
	return details
}

// ValidateReplacements fails on the first flagged cassette that is not
// scrapped or that already carries a replacement.
func ValidateReplacements(requests []ReplacementRequest) error {
	for _, req := range requests {
		if !req.RequestReplacement {
			continue
		}
		c := req.Cassette
		if c.Status != domain.CassetteStatusScrapped || c.ReplacementTicketID != nil {
			return &InvalidReplacementError{
				CassetteID:          c.ID,
				SerialNumber:        c.SerialNumber,
				Status:              c.Status,
				ReplacementTicketID: c.ReplacementTicketID,
			}
		}
	}
	return nil
}
