// Package validation decides whether an on-chain transaction is a valid bid.
package validation

import (
	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/idhash"
)

// Reason enumerates why a transaction was rejected as a bid.
type Reason string

const (
	ReasonAuctionNotLive    Reason = "auction_not_live"
	ReasonAfterEndTime      Reason = "after_end_time"
	ReasonWrongRecipient    Reason = "wrong_recipient"
	ReasonBelowMinIncrement Reason = "below_min_increment"
	ReasonDuplicateTx       Reason = "duplicate_tx"
)

// Decision is the outcome of validating one transaction against one
// auction snapshot. Bid is set only when Accepted.
type Decision struct {
	Accepted bool
	Reason   Reason
	Bid      *domain.Bid
}

// Validate decides accept/reject for a transaction against an auction
// snapshot. It is pure: no clock reads, no I/O, no mutation. Checks run
// in order and short-circuit on the first failure:
//
//  1. auction is live or ending soon
//  2. transaction timestamp at or before the auction end (blockchain
//     time is authoritative for the close boundary)
//  3. payment routed to the seller's receiving address
//  4. amount clears currentPrice + minimumIncrement
//  5. tx hash not already recorded against this auction
//
// On acceptance the computed bid carries the full transaction amount;
// there is no overpayment handling.
func Validate(a *domain.Auction, tx *domain.Transaction) Decision {
	if a.Status != domain.StatusLive && a.Status != domain.StatusEndingSoon {
		return Decision{Reason: ReasonAuctionNotLive}
	}

	if tx.Timestamp.After(a.EndTime) {
		return Decision{Reason: ReasonAfterEndTime}
	}

	if tx.RecipientAddress != a.Seller.Address {
		return Decision{Reason: ReasonWrongRecipient}
	}

	if tx.Amount < a.CurrentPrice+a.MinimumIncrement {
		return Decision{Reason: ReasonBelowMinIncrement}
	}

	for _, b := range a.Bids {
		if b.TxHash == tx.Hash {
			return Decision{Reason: ReasonDuplicateTx}
		}
	}

	return Decision{
		Accepted: true,
		Bid: &domain.Bid{
			ID:            idhash.BidID(a.ID, tx.Hash),
			AuctionID:     a.ID,
			BidderAddress: tx.SenderAddress,
			Amount:        tx.Amount,
			Status:        domain.BidStatusPending,
			TxHash:        tx.Hash,
			Timestamp:     tx.Timestamp,
		},
	}
}
