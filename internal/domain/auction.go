package domain

import "time"

// AuctionStatus is the time-based lifecycle state of an auction.
// It is a monotonic function of time and finalization: once an auction
// reaches StatusEnded it never leaves it.
type AuctionStatus string

const (
	StatusUpcoming   AuctionStatus = "upcoming"
	StatusLive       AuctionStatus = "live"
	StatusEndingSoon AuctionStatus = "ending_soon"
	StatusEnded      AuctionStatus = "ended"
)

// Seller identifies the auction owner and the on-chain address
// that receives bid payments.
type Seller struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Verified bool   `json:"verified"`
}

// Bidder identifies the current highest bidder.
type Bidder struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Auction is the authoritative per-auction state. All monetary values
// are in sompi (1 KAS = 100,000,000 sompi).
type Auction struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description"`
	ImageURL         string        `json:"imageUrl"`
	Seller           Seller        `json:"seller"`
	StartPrice       int64         `json:"startPrice"`
	ReservePrice     *int64        `json:"-"` // hidden floor, never serialized
	MinimumIncrement int64         `json:"minimumIncrement"`
	CurrentPrice     int64         `json:"currentPrice"`
	HighestBidder    *Bidder       `json:"highestBidder,omitempty"`
	StartTime        time.Time     `json:"startTime"`
	EndTime          time.Time     `json:"endTime"`
	Status           AuctionStatus `json:"status"`
	Bids             []*Bid        `json:"bids"` // newest first
	BidCount         int           `json:"bidCount"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// AuctionInput carries the fields required to create an auction.
type AuctionInput struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ImageURL         string    `json:"imageUrl"`
	SellerAddress    string    `json:"sellerAddress"`
	SellerName       string    `json:"sellerName"`
	SellerVerified   bool      `json:"sellerVerified"`
	StartPrice       int64     `json:"startPrice"`
	ReservePrice     *int64    `json:"reservePrice,omitempty"`
	MinimumIncrement int64     `json:"minimumIncrement"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
}

// ReserveMet reports whether the highest bid satisfies the reserve price.
// Auctions without a reserve are always considered met. Reserve
// enforcement itself is a settlement-layer concern; the engine only
// surfaces this flag on close.
func (a *Auction) ReserveMet() bool {
	if a.ReservePrice == nil {
		return true
	}
	return a.BidCount > 0 && a.CurrentPrice >= *a.ReservePrice
}

// Clone returns a deep copy of the auction so callers can hand out
// snapshots without exposing internal state to mutation.
func (a *Auction) Clone() *Auction {
	cp := *a
	if a.ReservePrice != nil {
		v := *a.ReservePrice
		cp.ReservePrice = &v
	}
	if a.HighestBidder != nil {
		b := *a.HighestBidder
		cp.HighestBidder = &b
	}
	if a.Bids != nil {
		cp.Bids = make([]*Bid, len(a.Bids))
		for i, b := range a.Bids {
			bc := *b
			cp.Bids[i] = &bc
		}
	}
	return &cp
}
