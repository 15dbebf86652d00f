package storage

import (
	"context"
	"time"

	"kaspa-auction-engine/internal/domain"
)

// AuctionStore provides access to authoritative auction state.
//
// ApplyAcceptedBid and AdvanceBidStatus are the only bid-mutating entry
// points and must be called only from the auction's own actor; the store
// itself enforces key uniqueness, not serialization.
type AuctionStore interface {
	// Create adds a new auction. Returns ErrDuplicateKey if the id exists.
	Create(ctx context.Context, a *domain.Auction) error

	// GetByID retrieves an auction snapshot. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, auctionID string) (*domain.Auction, error)

	// List retrieves all auctions, newest first.
	List(ctx context.Context) ([]*domain.Auction, error)

	// ListOpen retrieves all auctions that have not ended.
	ListOpen(ctx context.Context) ([]*domain.Auction, error)

	// ApplyAcceptedBid records an accepted bid and updates the auction's
	// current price, highest bidder and bid count in one step.
	// Returns ErrDuplicateKey if the bid's tx hash was already recorded,
	// ErrNotFound for an unknown auction.
	ApplyAcceptedBid(ctx context.Context, auctionID string, bid *domain.Bid) (*domain.Auction, error)

	// AdvanceBidStatus moves a bid forward in its confirmation lifecycle.
	// Backward transitions are silent no-ops returning the stored bid.
	// at is the transition instant; confirmationTime is only meaningful
	// for the confirmed transition. Returns ErrNotFound for an unknown
	// tx hash.
	AdvanceBidStatus(ctx context.Context, auctionID, txHash string, status domain.BidStatus, at time.Time, confirmationTime time.Duration) (*domain.Bid, error)

	// SetStatus updates the auction's lifecycle status.
	// Returns ErrNotFound for an unknown auction.
	SetStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) (*domain.Auction, error)

	// Delete removes an auction. Returns ErrUnauthorized if requester is
	// not the seller, ErrConflict if the auction has bids, ErrNotFound
	// for an unknown auction.
	Delete(ctx context.Context, auctionID, requesterAddress string) error
}

// DecisionArchive records validator decisions append-only for analytics.
type DecisionArchive interface {
	// InsertBatch appends a batch of decisions.
	InsertBatch(ctx context.Context, decisions []*domain.BidDecision) error
}
