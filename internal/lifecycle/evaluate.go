// Package lifecycle drives time-based auction status transitions.
package lifecycle

import (
	"time"

	"kaspa-auction-engine/internal/domain"
)

// Evaluate computes the status an auction should hold at the given
// instant. Ended is sticky: a finalized auction never leaves it, so
// re-running the evaluation is idempotent.
func Evaluate(a *domain.Auction, now time.Time, endingSoonThreshold time.Duration) domain.AuctionStatus {
	if a.Status == domain.StatusEnded {
		return domain.StatusEnded
	}
	if !now.Before(a.EndTime) {
		return domain.StatusEnded
	}
	if now.Before(a.StartTime) {
		return domain.StatusUpcoming
	}
	if a.EndTime.Sub(now) <= endingSoonThreshold {
		return domain.StatusEndingSoon
	}
	return domain.StatusLive
}
