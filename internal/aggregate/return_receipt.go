package aggregate

import "github.com/spec-kit/cassette-service/internal/domain"

// ReturnReceiptReadiness selects the cassettes a return receipt may mark OK.
type ReturnReceiptReadiness struct {
	CanReceive     bool
	InTransitCount int
	Candidates     []domain.Cassette
	Excluded       []domain.Cassette
}

// ReturnReceipt only picks cassettes on their way back to the operator; the
// others are left untouched.
func ReturnReceipt(cassettes []domain.Cassette) ReturnReceiptReadiness {
	var result ReturnReceiptReadiness
	for _, c := range cassettes {
		if c.Status == domain.CassetteStatusInTransitToPengelola {
			result.Candidates = append(result.Candidates, c)
			continue
		}
		result.Excluded = append(result.Excluded, c)
	}
	result.InTransitCount = len(result.Candidates)
	result.CanReceive = result.InTransitCount > 0
	return result
}
