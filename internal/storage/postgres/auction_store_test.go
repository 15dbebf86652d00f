package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
	"kaspa-auction-engine/internal/storage/postgres"
)

func testAuction() *domain.Auction {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Auction{
		ID:          uuid.NewString(),
		Title:       "Genesis Lot",
		Description: "First item",
		Seller: domain.Seller{
			Address:  "kaspa:seller",
			Name:     "Seller",
			Verified: true,
		},
		StartPrice:       100,
		MinimumIncrement: 10,
		CurrentPrice:     100,
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		Status:           domain.StatusLive,
		CreatedAt:        now,
	}
}

func testBid(auctionID, txHash string, amount int64) *domain.Bid {
	return &domain.Bid{
		ID:            uuid.NewString(),
		AuctionID:     auctionID,
		BidderAddress: "kaspa:bidder",
		BidderName:    "Bidder",
		Amount:        amount,
		Status:        domain.BidStatusPending,
		TxHash:        txHash,
		Timestamp:     time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAuctionStoreCreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	a := testAuction()
	a.ReservePrice = ptr(int64(500))
	require.NoError(t, store.Create(ctx, a))

	got, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, a.Seller, got.Seller)
	require.NotNil(t, got.ReservePrice)
	assert.Equal(t, int64(500), *got.ReservePrice)
	assert.Equal(t, domain.StatusLive, got.Status)
	assert.Empty(t, got.Bids)

	// Duplicate create
	assert.ErrorIs(t, store.Create(ctx, a), storage.ErrDuplicateKey)

	// Unknown ID
	_, err = store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuctionStoreApplyAcceptedBid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	a := testAuction()
	require.NoError(t, store.Create(ctx, a))

	updated, err := store.ApplyAcceptedBid(ctx, a.ID, testBid(a.ID, "tx1", 120))
	require.NoError(t, err)
	assert.Equal(t, int64(120), updated.CurrentPrice)
	assert.Equal(t, 1, updated.BidCount)
	require.NotNil(t, updated.HighestBidder)
	assert.Equal(t, "kaspa:bidder", updated.HighestBidder.Address)
	require.Len(t, updated.Bids, 1)

	// Second bid lands at the head of the list.
	second := testBid(a.ID, "tx2", 140)
	second.Timestamp = second.Timestamp.Add(time.Second)
	updated, err = store.ApplyAcceptedBid(ctx, a.ID, second)
	require.NoError(t, err)
	require.Len(t, updated.Bids, 2)
	assert.Equal(t, "tx2", updated.Bids[0].TxHash)
	assert.Equal(t, int64(140), updated.CurrentPrice)

	// Same tx hash again is a replay.
	_, err = store.ApplyAcceptedBid(ctx, a.ID, testBid(a.ID, "tx1", 160))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Unknown auction
	_, err = store.ApplyAcceptedBid(ctx, uuid.NewString(), testBid(uuid.NewString(), "tx3", 120))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuctionStoreAdvanceBidStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	a := testAuction()
	require.NoError(t, store.Create(ctx, a))
	_, err := store.ApplyAcceptedBid(ctx, a.ID, testBid(a.ID, "tx1", 120))
	require.NoError(t, err)

	detectedAt := time.Now().UTC().Truncate(time.Millisecond)
	bid, err := store.AdvanceBidStatus(ctx, a.ID, "tx1", domain.BidStatusDetected, detectedAt, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusDetected, bid.Status)
	require.NotNil(t, bid.DetectedAt)

	confirmedAt := detectedAt.Add(3 * time.Second)
	bid, err = store.AdvanceBidStatus(ctx, a.ID, "tx1", domain.BidStatusConfirmed, confirmedAt, 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusConfirmed, bid.Status)
	require.NotNil(t, bid.ConfirmedAt)
	assert.Equal(t, int64(3000), bid.ConfirmationTime)

	// Status never moves backward.
	bid, err = store.AdvanceBidStatus(ctx, a.ID, "tx1", domain.BidStatusDetected, confirmedAt, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusConfirmed, bid.Status)

	_, err = store.AdvanceBidStatus(ctx, a.ID, "missing", domain.BidStatusDetected, detectedAt, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuctionStoreSetStatus(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	a := testAuction()
	require.NoError(t, store.Create(ctx, a))

	updated, err := store.SetStatus(ctx, a.ID, domain.StatusEnded)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, updated.Status)

	_, err = store.SetStatus(ctx, uuid.NewString(), domain.StatusEnded)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAuctionStoreDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	a := testAuction()
	require.NoError(t, store.Create(ctx, a))

	// Only the seller can delete.
	assert.ErrorIs(t, store.Delete(ctx, a.ID, "kaspa:stranger"), storage.ErrUnauthorized)

	// Bids block deletion.
	_, err := store.ApplyAcceptedBid(ctx, a.ID, testBid(a.ID, "tx1", 120))
	require.NoError(t, err)
	assert.ErrorIs(t, store.Delete(ctx, a.ID, "kaspa:seller"), storage.ErrConflict)

	b := testAuction()
	require.NoError(t, store.Create(ctx, b))
	require.NoError(t, store.Delete(ctx, b.ID, "kaspa:seller"))
	_, err = store.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, uuid.NewString(), "kaspa:seller"), storage.ErrNotFound)
}

func TestAuctionStoreListOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewAuctionStore(pool)
	ctx := context.Background()

	live := testAuction()
	require.NoError(t, store.Create(ctx, live))

	ended := testAuction()
	ended.Status = domain.StatusEnded
	require.NoError(t, store.Create(ctx, ended))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	open, err := store.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, live.ID, open[0].ID)
}
