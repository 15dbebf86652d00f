package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

func testAuction(id string) *domain.Auction {
	now := time.Now().UTC()
	return &domain.Auction{
		ID:               id,
		Title:            "Test Lot",
		Seller:           domain.Seller{Address: "kaspa:seller"},
		StartPrice:       100,
		MinimumIncrement: 10,
		CurrentPrice:     100,
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		Status:           domain.StatusLive,
		CreatedAt:        now,
	}
}

func TestAuctionStore_CreateAndGet(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CurrentPrice != 100 {
		t.Errorf("CurrentPrice mismatch: got %d, want 100", got.CurrentPrice)
	}

	if err := store.Create(ctx, testAuction("a1")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestAuctionStore_GetReturnsSnapshot(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	snap, _ := store.GetByID(ctx, "a1")
	snap.CurrentPrice = 999
	snap.Bids = append(snap.Bids, &domain.Bid{TxHash: "mutated"})

	fresh, _ := store.GetByID(ctx, "a1")
	if fresh.CurrentPrice != 100 {
		t.Errorf("Snapshot mutation leaked into store: price %d", fresh.CurrentPrice)
	}
	if len(fresh.Bids) != 0 {
		t.Errorf("Snapshot mutation leaked into store: %d bids", len(fresh.Bids))
	}
}

func TestAuctionStore_ApplyAcceptedBid(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	bid := &domain.Bid{
		ID:            "bid1",
		AuctionID:     "a1",
		BidderAddress: "kaspa:bidder",
		Amount:        120,
		Status:        domain.BidStatusPending,
		TxHash:        "tx1",
		Timestamp:     time.Now().UTC(),
	}

	updated, err := store.ApplyAcceptedBid(ctx, "a1", bid)
	if err != nil {
		t.Fatalf("ApplyAcceptedBid failed: %v", err)
	}
	if updated.CurrentPrice != 120 {
		t.Errorf("CurrentPrice: got %d, want 120", updated.CurrentPrice)
	}
	if updated.BidCount != 1 {
		t.Errorf("BidCount: got %d, want 1", updated.BidCount)
	}
	if updated.HighestBidder == nil || updated.HighestBidder.Address != "kaspa:bidder" {
		t.Errorf("HighestBidder not set: %+v", updated.HighestBidder)
	}
	if len(updated.Bids) != 1 || updated.Bids[0].TxHash != "tx1" {
		t.Errorf("Bid not prepended: %+v", updated.Bids)
	}
}

func TestAuctionStore_ApplyAcceptedBid_ReplayedTxHash(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	bid := &domain.Bid{ID: "bid1", AuctionID: "a1", Amount: 120, TxHash: "tx1", Status: domain.BidStatusPending}
	if _, err := store.ApplyAcceptedBid(ctx, "a1", bid); err != nil {
		t.Fatalf("First apply failed: %v", err)
	}

	_, err := store.ApplyAcceptedBid(ctx, "a1", bid)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey on replay, got %v", err)
	}

	fresh, _ := store.GetByID(ctx, "a1")
	if fresh.BidCount != 1 {
		t.Errorf("Replay changed BidCount: got %d, want 1", fresh.BidCount)
	}
}

func TestAuctionStore_CreateSeedsReplayGuard(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	// Restored auction arrives with bid history already attached.
	a := testAuction("a1")
	a.Bids = []*domain.Bid{{ID: "bid1", AuctionID: "a1", Amount: 120, TxHash: "tx1", Status: domain.BidStatusPending}}
	a.BidCount = 1
	a.CurrentPrice = 120
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	bid := &domain.Bid{ID: "bid2", AuctionID: "a1", Amount: 140, TxHash: "tx1", Status: domain.BidStatusPending}
	if _, err := store.ApplyAcceptedBid(ctx, "a1", bid); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for restored tx hash, got %v", err)
	}

	if err := store.Create(ctx, testAuction("a2")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	bid2 := &domain.Bid{ID: "bid3", AuctionID: "a2", Amount: 140, TxHash: "tx1", Status: domain.BidStatusPending}
	if _, err := store.ApplyAcceptedBid(ctx, "a2", bid2); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey across auctions, got %v", err)
	}
}

func TestAuctionStore_AdvanceBidStatus(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	bid := &domain.Bid{ID: "bid1", AuctionID: "a1", Amount: 120, TxHash: "tx1", Status: domain.BidStatusPending}
	if _, err := store.ApplyAcceptedBid(ctx, "a1", bid); err != nil {
		t.Fatalf("ApplyAcceptedBid failed: %v", err)
	}

	detectedAt := time.Now().UTC()
	got, err := store.AdvanceBidStatus(ctx, "a1", "tx1", domain.BidStatusDetected, detectedAt, 0)
	if err != nil {
		t.Fatalf("AdvanceBidStatus(detected) failed: %v", err)
	}
	if got.Status != domain.BidStatusDetected {
		t.Errorf("Status: got %s, want detected", got.Status)
	}
	if got.DetectedAt == nil || !got.DetectedAt.Equal(detectedAt) {
		t.Errorf("DetectedAt not recorded: %v", got.DetectedAt)
	}

	confirmedAt := detectedAt.Add(3 * time.Second)
	got, err = store.AdvanceBidStatus(ctx, "a1", "tx1", domain.BidStatusConfirmed, confirmedAt, 3*time.Second)
	if err != nil {
		t.Fatalf("AdvanceBidStatus(confirmed) failed: %v", err)
	}
	if got.Status != domain.BidStatusConfirmed {
		t.Errorf("Status: got %s, want confirmed", got.Status)
	}
	if got.ConfirmationTime != 3000 {
		t.Errorf("ConfirmationTime: got %d, want 3000", got.ConfirmationTime)
	}

	// Backward transition is a no-op.
	got, err = store.AdvanceBidStatus(ctx, "a1", "tx1", domain.BidStatusDetected, confirmedAt, 0)
	if err != nil {
		t.Fatalf("Backward AdvanceBidStatus errored: %v", err)
	}
	if got.Status != domain.BidStatusConfirmed {
		t.Errorf("Status regressed to %s", got.Status)
	}

	if _, err := store.AdvanceBidStatus(ctx, "a1", "unknown", domain.BidStatusDetected, detectedAt, 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown tx, got %v", err)
	}
}

func TestAuctionStore_Delete(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	if err := store.Create(ctx, testAuction("a1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, "a1", "kaspa:stranger"); !errors.Is(err, storage.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}

	bid := &domain.Bid{ID: "bid1", AuctionID: "a1", Amount: 120, TxHash: "tx1", Status: domain.BidStatusPending}
	if _, err := store.ApplyAcceptedBid(ctx, "a1", bid); err != nil {
		t.Fatalf("ApplyAcceptedBid failed: %v", err)
	}
	if err := store.Delete(ctx, "a1", "kaspa:seller"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict with bids, got %v", err)
	}

	if err := store.Create(ctx, testAuction("a2")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete(ctx, "a2", "kaspa:seller"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetByID(ctx, "a2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, "missing", "kaspa:seller"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAuctionStore_ListOpen(t *testing.T) {
	store := NewAuctionStore()
	ctx := context.Background()

	a := testAuction("a1")
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b := testAuction("a2")
	b.Status = domain.StatusEnded
	if err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	open, err := store.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != "a1" {
		t.Errorf("ListOpen: got %d auctions, want just a1", len(open))
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List: got %d auctions, want 2", len(all))
	}
}
