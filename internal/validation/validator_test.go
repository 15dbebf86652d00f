package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaspa-auction-engine/internal/domain"
)

func liveAuction() *domain.Auction {
	now := time.Now().UTC()
	return &domain.Auction{
		ID:               "a1",
		Seller:           domain.Seller{Address: "kaspa:seller"},
		StartPrice:       100,
		MinimumIncrement: 10,
		CurrentPrice:     100,
		StartTime:        now.Add(-time.Hour),
		EndTime:          now.Add(time.Hour),
		Status:           domain.StatusLive,
	}
}

func paymentTx(hash string, amount int64) *domain.Transaction {
	return &domain.Transaction{
		Hash:             hash,
		Amount:           amount,
		SenderAddress:    "kaspa:bidder",
		RecipientAddress: "kaspa:seller",
		Timestamp:        time.Now().UTC(),
	}
}

func TestValidate_Accept(t *testing.T) {
	a := liveAuction()
	d := Validate(a, paymentTx("tx1", 120))

	require.True(t, d.Accepted)
	require.NotNil(t, d.Bid)
	assert.Equal(t, int64(120), d.Bid.Amount)
	assert.Equal(t, "a1", d.Bid.AuctionID)
	assert.Equal(t, "kaspa:bidder", d.Bid.BidderAddress)
	assert.Equal(t, domain.BidStatusPending, d.Bid.Status)
	assert.Equal(t, "tx1", d.Bid.TxHash)
	assert.NotEmpty(t, d.Bid.ID)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *domain.Auction, tx *domain.Transaction)
		reason Reason
	}{
		{
			name:   "upcoming auction",
			mutate: func(a *domain.Auction, _ *domain.Transaction) { a.Status = domain.StatusUpcoming },
			reason: ReasonAuctionNotLive,
		},
		{
			name:   "ended auction",
			mutate: func(a *domain.Auction, _ *domain.Transaction) { a.Status = domain.StatusEnded },
			reason: ReasonAuctionNotLive,
		},
		{
			name: "timestamp after end time",
			mutate: func(a *domain.Auction, tx *domain.Transaction) {
				tx.Timestamp = a.EndTime.Add(time.Second)
			},
			reason: ReasonAfterEndTime,
		},
		{
			name: "payment to wrong address",
			mutate: func(_ *domain.Auction, tx *domain.Transaction) {
				tx.RecipientAddress = "kaspa:someone-else"
			},
			reason: ReasonWrongRecipient,
		},
		{
			name:   "amount equal to current price",
			mutate: func(_ *domain.Auction, tx *domain.Transaction) { tx.Amount = 100 },
			reason: ReasonBelowMinIncrement,
		},
		{
			name:   "amount below full increment",
			mutate: func(_ *domain.Auction, tx *domain.Transaction) { tx.Amount = 109 },
			reason: ReasonBelowMinIncrement,
		},
		{
			name: "replayed tx hash",
			mutate: func(a *domain.Auction, tx *domain.Transaction) {
				a.Bids = []*domain.Bid{{TxHash: tx.Hash}}
			},
			reason: ReasonDuplicateTx,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := liveAuction()
			tx := paymentTx("tx1", 120)
			tt.mutate(a, tx)

			d := Validate(a, tx)

			assert.False(t, d.Accepted)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Nil(t, d.Bid)
		})
	}
}

func TestValidate_EndingSoonAccepts(t *testing.T) {
	a := liveAuction()
	a.Status = domain.StatusEndingSoon

	d := Validate(a, paymentTx("tx1", 120))
	assert.True(t, d.Accepted)
}

func TestValidate_ExactIncrementAccepted(t *testing.T) {
	a := liveAuction()

	d := Validate(a, paymentTx("tx1", 110))
	require.True(t, d.Accepted)
	assert.Equal(t, int64(110), d.Bid.Amount)
}

func TestValidate_TimestampExactlyAtEndAccepted(t *testing.T) {
	a := liveAuction()
	tx := paymentTx("tx1", 120)
	tx.Timestamp = a.EndTime

	d := Validate(a, tx)
	assert.True(t, d.Accepted)
}

func TestValidate_CheckOrder(t *testing.T) {
	// A transaction that fails several checks reports the earliest one.
	a := liveAuction()
	a.Status = domain.StatusEnded
	tx := paymentTx("tx1", 5)
	tx.RecipientAddress = "kaspa:wrong"

	d := Validate(a, tx)
	assert.Equal(t, ReasonAuctionNotLive, d.Reason)
}
