package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

// AuctionStore is an in-memory implementation of storage.AuctionStore.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	txIndex  map[string]string // tx hash -> auction id, global replay guard
}

// NewAuctionStore creates a new in-memory auction store.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*domain.Auction),
		txIndex:  make(map[string]string),
	}
}

var _ storage.AuctionStore = (*AuctionStore)(nil)

// Create adds a new auction. Returns ErrDuplicateKey if the id exists.
func (s *AuctionStore) Create(_ context.Context, a *domain.Auction) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[a.ID]; exists {
		return storage.ErrDuplicateKey
	}

	clone := a.Clone()
	s.auctions[a.ID] = clone
	// Restored auctions arrive with their bid history; those tx hashes
	// must stay under the global replay guard.
	for _, b := range clone.Bids {
		s.txIndex[b.TxHash] = a.ID
	}
	return nil
}

// GetByID retrieves an auction snapshot. Returns ErrNotFound if not exists.
func (s *AuctionStore) GetByID(_ context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a.Clone(), nil
}

// List retrieves all auctions, newest first.
func (s *AuctionStore) List(_ context.Context) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		result = append(result, a.Clone())
	}
	sortAuctions(result)
	return result, nil
}

// ListOpen retrieves all auctions that have not ended.
func (s *AuctionStore) ListOpen(_ context.Context) ([]*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Auction
	for _, a := range s.auctions {
		if a.Status != domain.StatusEnded {
			result = append(result, a.Clone())
		}
	}
	sortAuctions(result)
	return result, nil
}

// ApplyAcceptedBid records an accepted bid and updates the auction state.
func (s *AuctionStore) ApplyAcceptedBid(_ context.Context, auctionID string, bid *domain.Bid) (*domain.Auction, error) {
	if bid == nil || bid.TxHash == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if _, exists := s.txIndex[bid.TxHash]; exists {
		return nil, storage.ErrDuplicateKey
	}

	cp := *bid
	a.Bids = append([]*domain.Bid{&cp}, a.Bids...)
	a.BidCount = len(a.Bids)
	a.CurrentPrice = bid.Amount
	a.HighestBidder = &domain.Bidder{Address: bid.BidderAddress, Name: bid.BidderName}
	s.txIndex[bid.TxHash] = auctionID

	return a.Clone(), nil
}

// AdvanceBidStatus moves a bid forward in its confirmation lifecycle.
func (s *AuctionStore) AdvanceBidStatus(_ context.Context, auctionID, txHash string, status domain.BidStatus, at time.Time, confirmationTime time.Duration) (*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	for _, b := range a.Bids {
		if b.TxHash != txHash {
			continue
		}
		if !b.Status.Before(status) {
			// Never regress; duplicate delivery is a no-op.
			cp := *b
			return &cp, nil
		}
		b.Status = status
		switch status {
		case domain.BidStatusDetected:
			ts := at
			b.DetectedAt = &ts
		case domain.BidStatusConfirmed:
			ts := at
			b.ConfirmedAt = &ts
			b.ConfirmationTime = confirmationTime.Milliseconds()
		}
		cp := *b
		return &cp, nil
	}

	return nil, storage.ErrNotFound
}

// SetStatus updates the auction's lifecycle status.
func (s *AuctionStore) SetStatus(_ context.Context, auctionID string, status domain.AuctionStatus) (*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	a.Status = status
	return a.Clone(), nil
}

// Delete removes an auction owned by requesterAddress and without bids.
func (s *AuctionStore) Delete(_ context.Context, auctionID, requesterAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return storage.ErrNotFound
	}
	if a.Seller.Address != requesterAddress {
		return storage.ErrUnauthorized
	}
	if a.BidCount > 0 {
		return storage.ErrConflict
	}

	delete(s.auctions, auctionID)
	return nil
}

func sortAuctions(auctions []*domain.Auction) {
	sort.Slice(auctions, func(i, j int) bool {
		if !auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].CreatedAt.After(auctions[j].CreatedAt)
		}
		return auctions[i].ID < auctions[j].ID
	})
}
