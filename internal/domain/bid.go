package domain

import "time"

// BidStatus is the confirmation lifecycle state of a bid.
// Transitions only move forward: pending -> detected -> confirmed.
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusDetected  BidStatus = "detected"
	BidStatusConfirmed BidStatus = "confirmed"
)

// rank maps bid statuses to their position in the lifecycle.
func (s BidStatus) rank() int {
	switch s {
	case BidStatusPending:
		return 0
	case BidStatusDetected:
		return 1
	case BidStatusConfirmed:
		return 2
	}
	return -1
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s BidStatus) Before(other BidStatus) bool {
	return s.rank() < other.rank()
}

// Bid is a validated claim on an auction, derived one-to-one from an
// accepted on-chain transaction. Amount is in sompi. Timestamp comes
// from the transaction, not from receipt time.
type Bid struct {
	ID            string     `json:"id"`
	AuctionID     string     `json:"auctionId"`
	BidderAddress string     `json:"bidderAddress"`
	BidderName    string     `json:"bidderName,omitempty"`
	Amount        int64      `json:"amount"`
	Status        BidStatus  `json:"status"`
	TxHash        string     `json:"txHash"`
	Timestamp     time.Time  `json:"timestamp"`
	DetectedAt    *time.Time `json:"detectedAt,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`

	// ConfirmationTime is the latency observed between detection and
	// confirmation, in milliseconds. Zero until confirmed.
	ConfirmationTime int64 `json:"confirmationTimeMs,omitempty"`
}

// BidDecision is the append-only record of one validator decision,
// accepted or rejected, kept for settlement analytics.
type BidDecision struct {
	AuctionID     string
	TxHash        string
	BidderAddress string
	Amount        int64
	Accepted      bool
	Reason        string // empty when accepted
	DecidedAt     time.Time
}
