// Package engine turns raw on-chain payment transactions into validated
// bids and authoritative auction state. One actor per auction serializes
// all mutation; independent auctions process fully in parallel.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"kaspa-auction-engine/internal/confirmation"
	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/events"
	"kaspa-auction-engine/internal/lifecycle"
	"kaspa-auction-engine/internal/storage"
)

// DecisionRecorder receives every validator decision for archival.
// Record must never block; a false return means the decision was dropped.
type DecisionRecorder interface {
	Record(d *domain.BidDecision) bool
}

// confirmationTracker is the slice of confirmation.Tracker the actors use.
type confirmationTracker interface {
	Register(txHash, auctionID string)
	Restore(txHash, auctionID string, detectedAt time.Time)
	Lookup(txHash string) (auctionID string, ok bool)
	MarkDetected(txHash string, at time.Time) bool
	Confirm(txHash string, at time.Time) (time.Duration, bool)
}

// Config tunes engine behavior.
type Config struct {
	// EndingSoonThreshold is how long before end time an auction is
	// flagged ending soon. Default 10 minutes.
	EndingSoonThreshold time.Duration

	// ActorGrace is how long an ended auction's actor stays up to absorb
	// late confirmations before closing. Default 1 minute.
	ActorGrace time.Duration

	// MailboxSize is the per-actor event queue depth. Default 256.
	MailboxSize int
}

func (c *Config) setDefaults() {
	if c.EndingSoonThreshold <= 0 {
		c.EndingSoonThreshold = 10 * time.Minute
	}
	if c.ActorGrace <= 0 {
		c.ActorGrace = time.Minute
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = 256
	}
}

// Options contains dependencies for creating an Engine.
type Options struct {
	Store     storage.AuctionStore
	Publisher events.Publisher
	Recorder  DecisionRecorder // optional
	Metrics   MetricsSink      // optional
	Logger    *log.Logger
	Config    Config
}

// Engine is the auction settlement engine facade.
type Engine struct {
	store    storage.AuctionStore
	registry *registry
	tracker  confirmationTracker
	deps     *actorDeps
	cfg      Config
	logger   *log.Logger
}

// New creates an Engine. Call Start to recover stored auctions before
// feeding it events.
func New(opts Options) *Engine {
	cfg := opts.Config
	cfg.setDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}

	tracker := confirmation.NewTracker()
	reg := newRegistry()

	e := &Engine{
		store:    opts.Store,
		registry: reg,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger,
	}
	e.deps = &actorDeps{
		store:     opts.Store,
		tracker:   tracker,
		publisher: publisher,
		recorder:  opts.Recorder,
		metrics:   engineMetrics{sink: opts.Metrics},
		logger:    logger,
		onClose:   e.registry.remove,
	}
	return e
}

// Start recovers all open auctions from the store: spawns their actors
// and rebuilds the confirmation index from unconfirmed bids.
func (e *Engine) Start(ctx context.Context) error {
	open, err := e.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open auctions: %w", err)
	}

	for _, a := range open {
		e.spawn(a.ID)
		for _, b := range a.Bids {
			switch b.Status {
			case domain.BidStatusPending:
				e.tracker.Register(b.TxHash, a.ID)
			case domain.BidStatusDetected:
				detectedAt := b.Timestamp
				if b.DetectedAt != nil {
					detectedAt = *b.DetectedAt
				}
				e.tracker.Restore(b.TxHash, a.ID, detectedAt)
			}
		}
	}

	e.logger.Printf("[engine] started with %d open auctions", len(open))
	return nil
}

// Close shuts down every actor and waits for their queues to stop.
func (e *Engine) Close() {
	for _, a := range e.registry.all() {
		a.close()
	}
	for _, a := range e.registry.all() {
		<-a.done
	}
	e.logger.Println("[engine] stopped")
}

// CreateAuction validates input and creates a new auction with its actor.
func (e *Engine) CreateAuction(ctx context.Context, input domain.AuctionInput) (*domain.Auction, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &domain.Auction{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Seller: domain.Seller{
			Address:  input.SellerAddress,
			Name:     input.SellerName,
			Verified: input.SellerVerified,
		},
		StartPrice:       input.StartPrice,
		ReservePrice:     input.ReservePrice,
		MinimumIncrement: input.MinimumIncrement,
		CurrentPrice:     input.StartPrice,
		StartTime:        input.StartTime.UTC(),
		EndTime:          input.EndTime.UTC(),
		CreatedAt:        now,
	}
	a.Status = lifecycle.Evaluate(a, now, e.cfg.EndingSoonThreshold)

	if err := e.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	e.spawn(a.ID)
	e.deps.publisher.Publish(events.AuctionUpdated(a))
	e.deps.metrics.setOpenAuctions(e.registry.size())
	e.logger.Printf("[engine] created auction %s (%q), %s", a.ID, a.Title, a.Status)
	return a, nil
}

// GetAuction returns a snapshot of one auction.
func (e *Engine) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	return e.store.GetByID(ctx, auctionID)
}

// ListAuctions returns snapshots of all auctions, newest first.
func (e *Engine) ListAuctions(ctx context.Context) ([]*domain.Auction, error) {
	return e.store.List(ctx)
}

// ProcessOnChainBid routes a transaction to the auction's actor and waits
// for its decision. A nil bid with nil error is a silent rejection.
// Unknown auction ids return storage.ErrNotFound.
func (e *Engine) ProcessOnChainBid(ctx context.Context, auctionID string, tx *domain.Transaction) (*domain.Bid, error) {
	if tx == nil || tx.Hash == "" {
		return nil, storage.ErrInvalidInput
	}

	a, ok := e.registry.get(auctionID)
	if !ok {
		// No live actor: either the auction never existed (caller bug,
		// surfaced) or it closed already (late event, dropped).
		if _, err := e.store.GetByID(ctx, auctionID); err != nil {
			return nil, fmt.Errorf("process bid for %s: %w", auctionID, err)
		}
		e.logger.Printf("[engine] dropped tx %s for closed auction %s", tx.Hash, auctionID)
		e.deps.metrics.incDropped("engine")
		return nil, nil
	}

	req := bidRequest{tx: tx, resp: make(chan bidResult, 1)}
	if !a.enqueue(req) {
		e.logger.Printf("[engine] dropped tx %s for closed auction %s", tx.Hash, auctionID)
		e.deps.metrics.incDropped("engine")
		return nil, nil
	}

	select {
	case res := <-req.resp:
		if res.err == errActorClosed {
			e.logger.Printf("[engine] dropped tx %s for closed auction %s", tx.Hash, auctionID)
			return nil, nil
		}
		return res.bid, res.err
	case <-a.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessConfirmation advances a bid's confirmation lifecycle.
// Unknown tx hashes are silent no-ops: they may belong to unrelated
// transfers or to already-confirmed bids on at-least-once delivery.
func (e *Engine) ProcessConfirmation(_ context.Context, txHash string, depthReached bool) {
	auctionID, ok := e.tracker.Lookup(txHash)
	if !ok {
		return
	}
	a, ok := e.registry.get(auctionID)
	if !ok {
		return
	}
	if !a.enqueue(confirmSignal{txHash: txHash, depthReached: depthReached, at: time.Now().UTC()}) {
		e.logger.Printf("[engine] dropped confirmation %s for closed auction %s", txHash, auctionID)
		e.deps.metrics.incDropped("engine")
	}
}

// DeleteAuction removes an auction before any bid exists. Only the
// seller may delete.
func (e *Engine) DeleteAuction(ctx context.Context, auctionID, requesterAddress string) error {
	if err := e.store.Delete(ctx, auctionID, requesterAddress); err != nil {
		return fmt.Errorf("delete auction %s: %w", auctionID, err)
	}

	if a, ok := e.registry.get(auctionID); ok {
		a.close()
		e.registry.remove(auctionID)
	}
	e.deps.metrics.setOpenAuctions(e.registry.size())
	e.logger.Printf("[engine] deleted auction %s", auctionID)
	return nil
}

// Tick fans a lifecycle evaluation out to every actor's own queue so
// status transitions never interleave with that auction's bid stream.
// Full mailboxes skip the tick; the next interval retries.
func (e *Engine) Tick(now time.Time) {
	for _, a := range e.registry.all() {
		a.tryEnqueue(lifecycleTick{now: now})
	}
	e.deps.metrics.setOpenAuctions(e.registry.size())
}

func (e *Engine) spawn(auctionID string) {
	a := newActor(auctionID, e.deps, e.cfg)
	if e.registry.add(a) {
		a.start()
	}
}

// validateInput rejects malformed creation requests with ErrInvalidInput.
func validateInput(input domain.AuctionInput) error {
	switch {
	case input.Title == "":
		return fmt.Errorf("%w: title is required", storage.ErrInvalidInput)
	case input.SellerAddress == "":
		return fmt.Errorf("%w: seller address is required", storage.ErrInvalidInput)
	case input.StartPrice <= 0:
		return fmt.Errorf("%w: start price must be positive", storage.ErrInvalidInput)
	case input.MinimumIncrement <= 0:
		return fmt.Errorf("%w: minimum increment must be positive", storage.ErrInvalidInput)
	case input.ReservePrice != nil && *input.ReservePrice <= 0:
		return fmt.Errorf("%w: reserve price must be positive", storage.ErrInvalidInput)
	case input.StartTime.IsZero() || input.EndTime.IsZero():
		return fmt.Errorf("%w: start and end times are required", storage.ErrInvalidInput)
	case !input.EndTime.After(input.StartTime):
		return fmt.Errorf("%w: end time must be after start time", storage.ErrInvalidInput)
	}
	return nil
}
