package watcher

import (
	"context"
	"log"
	"sync"
	"time"

	"kaspa-auction-engine/internal/domain"
)

// BidEngine is the part of the settlement engine the watcher drives.
type BidEngine interface {
	ProcessOnChainBid(ctx context.Context, auctionID string, tx *domain.Transaction) (*domain.Bid, error)
	ProcessConfirmation(ctx context.Context, txHash string, depthReached bool)
}

// NotificationSource abstracts the node client for testing.
type NotificationSource interface {
	Notifications() <-chan Notification
	SubscribeUTXOs(ctx context.Context, addresses []string) error
	UnsubscribeUTXOs(ctx context.Context, addresses []string) error
	SubscribeVirtualDAAScore(ctx context.Context) error
}

// Options configures a Watcher.
type Options struct {
	Source NotificationSource
	Engine BidEngine
	Logger *log.Logger
	// ConfirmationDepth is the DAA score distance at which a bid
	// transaction counts as confirmed. Default 10.
	ConfirmationDepth int64
	// OnMessage is invoked per processed notification; optional.
	OnMessage func()
}

// Watcher routes node notifications into the engine. Payments to a
// tracked seller address become bid submissions for that seller's
// auction; virtual DAA score updates advance confirmation depth for
// accepted bids.
type Watcher struct {
	source NotificationSource
	engine BidEngine
	logger *log.Logger
	depth  int64
	onMsg  func()

	mu sync.Mutex
	// byAddress maps a seller payment address to its auction. One
	// address serves one auction at a time; re-tracking overwrites.
	byAddress map[string]string
	addresses map[string]string // auctionID -> address, for Untrack
	// pending maps accepted bid tx hashes to the DAA score at which
	// they were first seen.
	pending map[string]int64
}

// New creates a Watcher. Call Run to start consuming notifications.
func New(opts Options) *Watcher {
	depth := opts.ConfirmationDepth
	if depth <= 0 {
		depth = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	onMsg := opts.OnMessage
	if onMsg == nil {
		onMsg = func() {}
	}
	return &Watcher{
		source:    opts.Source,
		engine:    opts.Engine,
		logger:    logger,
		depth:     depth,
		onMsg:     onMsg,
		byAddress: make(map[string]string),
		addresses: make(map[string]string),
		pending:   make(map[string]int64),
	}
}

// Track subscribes the seller address and routes its payments to the
// given auction. Tracking the same address again reroutes it.
func (w *Watcher) Track(ctx context.Context, auctionID, sellerAddress string) error {
	w.mu.Lock()
	if prev, ok := w.byAddress[sellerAddress]; ok && prev != auctionID {
		w.logger.Printf("[watcher] address %s rerouted from auction %s to %s", sellerAddress, prev, auctionID)
	}
	w.byAddress[sellerAddress] = auctionID
	w.addresses[auctionID] = sellerAddress
	w.mu.Unlock()

	return w.source.SubscribeUTXOs(ctx, []string{sellerAddress})
}

// Untrack stops watching the auction's seller address.
func (w *Watcher) Untrack(ctx context.Context, auctionID string) error {
	w.mu.Lock()
	addr, ok := w.addresses[auctionID]
	if ok {
		delete(w.addresses, auctionID)
		if w.byAddress[addr] == auctionID {
			delete(w.byAddress, addr)
		}
	}
	w.mu.Unlock()

	if !ok {
		return nil
	}
	return w.source.UnsubscribeUTXOs(ctx, []string{addr})
}

// Run consumes notifications until ctx is cancelled or the source
// channel closes.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.source.SubscribeVirtualDAAScore(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-w.source.Notifications():
			if !ok {
				w.logger.Println("[watcher] notification stream closed")
				return nil
			}
			w.onMsg()
			switch n.Method {
			case "utxosChanged":
				w.handleUTXOs(ctx, n.UTXOs)
			case "virtualDaaScoreChanged":
				w.handleDAAScore(ctx, n.DAAScore)
			}
		}
	}
}

func (w *Watcher) handleUTXOs(ctx context.Context, entries []UTXOEntry) {
	for _, entry := range entries {
		w.mu.Lock()
		auctionID, ok := w.byAddress[entry.Address]
		w.mu.Unlock()
		if !ok {
			continue
		}

		tx := &domain.Transaction{
			Hash:             entry.TxID,
			Amount:           entry.Amount,
			SenderAddress:    entry.SenderAddress,
			RecipientAddress: entry.Address,
			Timestamp:        time.UnixMilli(entry.BlockTime).UTC(),
			DAAScore:         entry.DAAScore,
		}

		bid, err := w.engine.ProcessOnChainBid(ctx, auctionID, tx)
		if err != nil {
			w.logger.Printf("[watcher] process tx %s for auction %s: %v", tx.Hash, auctionID, err)
			continue
		}
		if bid == nil {
			continue
		}

		// The notification means the transaction is in a block, so the
		// accepted bid is immediately detected. Depth counting starts
		// from the entry's own DAA score.
		w.mu.Lock()
		w.pending[tx.Hash] = entry.DAAScore
		w.mu.Unlock()
		w.engine.ProcessConfirmation(ctx, tx.Hash, false)
	}
}

func (w *Watcher) handleDAAScore(ctx context.Context, score int64) {
	w.mu.Lock()
	var confirmed []string
	for hash, seenAt := range w.pending {
		if score-seenAt >= w.depth {
			confirmed = append(confirmed, hash)
			delete(w.pending, hash)
		}
	}
	w.mu.Unlock()

	for _, hash := range confirmed {
		w.engine.ProcessConfirmation(ctx, hash, true)
	}
}

// PendingConfirmations reports how many accepted bids are still waiting
// for confirmation depth.
func (w *Watcher) PendingConfirmations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
