// Package aggregate reduces a ticket's cassette set, and the repair tickets
// attached to it, into the facts the ticket guards consume.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/spec-kit/cassette-service/internal/domain"
)

// PickupReadiness partitions a ticket's cassettes for pickup by the operator.
type PickupReadiness struct {
	CanPickup        bool
	ReadyCount       int
	ScrappedCount    int
	OtherStatusCount int
	// ToPickup leave the repair center, ToDispose stay behind.
	ToPickup  []domain.Cassette
	ToDispose []domain.Cassette
	Blocking  []domain.Cassette
	Reason    string
}

// Pickup is all-or-nothing: any cassette that is neither ready nor scrapped
// blocks the whole ticket.
func Pickup(cassettes []domain.Cassette) PickupReadiness {
	var result PickupReadiness
	for _, c := range cassettes {
		switch c.Status {
		case domain.CassetteStatusReadyForPickup:
			result.ReadyCount++
			result.ToPickup = append(result.ToPickup, c)
		case domain.CassetteStatusScrapped:
			result.ScrappedCount++
			result.ToDispose = append(result.ToDispose, c)
		default:
			result.OtherStatusCount++
			result.Blocking = append(result.Blocking, c)
		}
	}
	result.CanPickup = result.OtherStatusCount == 0
	if !result.CanPickup {
		result.Reason = fmt.Sprintf("%d cassette(s) not ready for pickup: %s", result.OtherStatusCount, describe(result.Blocking))
	}
	return result
}

func describe(cassettes []domain.Cassette) string {
	parts := make([]string, 0, len(cassettes))
	for _, c := range cassettes {
		parts = append(parts, fmt.Sprintf("%s (%s)", label(c), c.Status))
	}
	return strings.Join(parts, ", ")
}

func label(c domain.Cassette) string {
	if c.SerialNumber != "" {
		return c.SerialNumber
	}
	return c.ID
}
