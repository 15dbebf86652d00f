// Package events defines the outbound notification contract of the engine.
package events

import "kaspa-auction-engine/internal/domain"

// Event types emitted by the engine. AllAuctions is only produced in
// response to a client snapshot request, never by the engine itself.
const (
	TypeAuctionUpdated = "auction_updated"
	TypeBidDetected    = "bid_detected"
	TypeBidConfirmed   = "bid_confirmed"
	TypeAuctionEnded   = "auction_ended"
	TypeAllAuctions    = "all_auctions"
)

// Event is one outbound notification.
type Event struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// BidPayload accompanies bid_detected and bid_confirmed.
type BidPayload struct {
	AuctionID string      `json:"auctionId"`
	Bid       *domain.Bid `json:"bid"`
}

// EndedPayload accompanies auction_ended. ReserveMet is surfaced for a
// downstream settlement process; the engine closes the auction either way.
type EndedPayload struct {
	Auction    *domain.Auction `json:"auction"`
	ReserveMet bool            `json:"reserveMet"`
}

// Publisher is the outbound notification sink. The engine calls it and
// never blocks on it; implementations own their transport and retries.
type Publisher interface {
	Publish(Event)
}

// AuctionUpdated builds an auction_updated event.
func AuctionUpdated(a *domain.Auction) Event {
	return Event{Type: TypeAuctionUpdated, AuctionID: a.ID, Payload: a}
}

// BidDetected builds a bid_detected event.
func BidDetected(auctionID string, b *domain.Bid) Event {
	return Event{Type: TypeBidDetected, AuctionID: auctionID, Payload: BidPayload{AuctionID: auctionID, Bid: b}}
}

// BidConfirmed builds a bid_confirmed event.
func BidConfirmed(auctionID string, b *domain.Bid) Event {
	return Event{Type: TypeBidConfirmed, AuctionID: auctionID, Payload: BidPayload{AuctionID: auctionID, Bid: b}}
}

// AuctionEnded builds an auction_ended event.
func AuctionEnded(a *domain.Auction) Event {
	return Event{Type: TypeAuctionEnded, AuctionID: a.ID, Payload: EndedPayload{Auction: a, ReserveMet: a.ReserveMet()}}
}
