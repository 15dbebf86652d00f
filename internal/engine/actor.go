package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/events"
	"kaspa-auction-engine/internal/lifecycle"
	"kaspa-auction-engine/internal/storage"
	"kaspa-auction-engine/internal/validation"
)

// errActorClosed signals that an auction's actor has shut down; callers
// treat in-flight events for it as dropped.
var errActorClosed = errors.New("auction actor closed")

// Mailbox messages. Each is processed to completion before the next is
// dequeued, which is the per-auction FIFO guarantee.
type bidRequest struct {
	tx   *domain.Transaction
	resp chan bidResult // buffered, size 1
}

type bidResult struct {
	bid *domain.Bid
	err error
}

type confirmSignal struct {
	txHash       string
	depthReached bool
	at           time.Time
}

type lifecycleTick struct {
	now time.Time
}

// actor owns one auction's mutable state. It is the only writer of that
// auction in the store; everything reaches it through the mailbox.
type actor struct {
	auctionID string
	deps      *actorDeps
	cfg       Config

	mailbox chan any
	quit    chan struct{}
	done    chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once

	// endedAt is set once the ended transition is observed; the actor
	// closes itself after the grace period. Only touched from run().
	endedAt time.Time
}

// actorDeps are shared across all actors of one engine.
type actorDeps struct {
	store     storage.AuctionStore
	tracker   confirmationTracker
	publisher events.Publisher
	recorder  DecisionRecorder
	metrics   engineMetrics
	logger    *log.Logger
	onClose   func(auctionID string)
}

func newActor(auctionID string, deps *actorDeps, cfg Config) *actor {
	return &actor{
		auctionID: auctionID,
		deps:      deps,
		cfg:       cfg,
		mailbox:   make(chan any, cfg.MailboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (a *actor) start() {
	go a.run()
}

func (a *actor) run() {
	defer close(a.done)
	for {
		select {
		case <-a.quit:
			a.drain()
			return
		case msg := <-a.mailbox:
			a.handle(msg)
		}
	}
}

func (a *actor) handle(msg any) {
	switch m := msg.(type) {
	case bidRequest:
		a.handleBid(m)
	case confirmSignal:
		a.handleConfirm(m)
	case lifecycleTick:
		a.handleTick(m.now)
	}
}

// enqueue delivers a message, blocking when the mailbox is full.
// Returns false once the actor has closed.
func (a *actor) enqueue(msg any) bool {
	if a.closed.Load() {
		return false
	}
	select {
	case a.mailbox <- msg:
		return true
	case <-a.quit:
		return false
	}
}

// tryEnqueue delivers a message without blocking; full mailboxes drop.
// Used for lifecycle ticks, which are re-issued on the next interval.
func (a *actor) tryEnqueue(msg any) bool {
	if a.closed.Load() {
		return false
	}
	select {
	case a.mailbox <- msg:
		return true
	default:
		return false
	}
}

// close shuts the actor down. Idempotent.
func (a *actor) close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.quit)
	})
}

// drain empties the mailbox after close; late events are dropped and
// logged, never applied.
func (a *actor) drain() {
	for {
		select {
		case msg := <-a.mailbox:
			if req, ok := msg.(bidRequest); ok {
				req.resp <- bidResult{err: errActorClosed}
			}
			a.deps.logger.Printf("[actor %s] dropped in-flight event after close", a.auctionID)
			a.deps.metrics.incDropped("actor")
		default:
			return
		}
	}
}

func (a *actor) handleBid(req bidRequest) {
	start := time.Now()
	ctx := context.Background()

	snap, err := a.deps.store.GetByID(ctx, a.auctionID)
	if err != nil {
		req.resp <- bidResult{err: err}
		return
	}

	d := validation.Validate(snap, req.tx)

	if !d.Accepted {
		a.record(d, req.tx)
		// Rejections are silent no-ops: most disqualified transfers on a
		// permissionless stream are simply ignored.
		a.deps.logger.Printf("[actor %s] rejected tx %s: %s", a.auctionID, req.tx.Hash, d.Reason)
		a.deps.metrics.incRejected(string(d.Reason))
		req.resp <- bidResult{}
		return
	}

	updated, err := a.deps.store.ApplyAcceptedBid(ctx, a.auctionID, d.Bid)
	if errors.Is(err, storage.ErrDuplicateKey) {
		// The store's global tx-hash guard caught a replay the snapshot
		// had not seen yet. Archive it as rejected so the decision log
		// matches applied state.
		a.record(validation.Decision{Reason: validation.ReasonDuplicateTx}, req.tx)
		a.deps.logger.Printf("[actor %s] replayed tx %s, no-op", a.auctionID, req.tx.Hash)
		req.resp <- bidResult{}
		return
	}
	if err != nil {
		req.resp <- bidResult{err: err}
		return
	}

	a.record(d, req.tx)
	a.deps.tracker.Register(d.Bid.TxHash, a.auctionID)
	a.deps.publisher.Publish(events.BidDetected(a.auctionID, d.Bid))
	a.deps.publisher.Publish(events.AuctionUpdated(updated))
	a.deps.metrics.incAccepted()
	a.deps.metrics.observeBidLatency(time.Since(start))
	a.deps.logger.Printf("[actor %s] accepted bid %s amount %d, price now %d",
		a.auctionID, d.Bid.ID, d.Bid.Amount, updated.CurrentPrice)

	req.resp <- bidResult{bid: d.Bid}
}

func (a *actor) handleConfirm(sig confirmSignal) {
	ctx := context.Background()

	if !sig.depthReached {
		if !a.deps.tracker.MarkDetected(sig.txHash, sig.at) {
			return
		}
		if _, err := a.deps.store.AdvanceBidStatus(ctx, a.auctionID, sig.txHash, domain.BidStatusDetected, sig.at, 0); err != nil {
			a.deps.logger.Printf("[actor %s] advance tx %s to detected: %v", a.auctionID, sig.txHash, err)
		}
		return
	}

	latency, ok := a.deps.tracker.Confirm(sig.txHash, sig.at)
	if !ok {
		return
	}
	bid, err := a.deps.store.AdvanceBidStatus(ctx, a.auctionID, sig.txHash, domain.BidStatusConfirmed, sig.at, latency)
	if err != nil {
		a.deps.logger.Printf("[actor %s] advance tx %s to confirmed: %v", a.auctionID, sig.txHash, err)
		return
	}
	a.deps.publisher.Publish(events.BidConfirmed(a.auctionID, bid))
	a.deps.metrics.incConfirmed()
	a.deps.metrics.observeConfirmationLatency(latency)
}

func (a *actor) handleTick(now time.Time) {
	if !a.endedAt.IsZero() {
		if now.Sub(a.endedAt) >= a.cfg.ActorGrace {
			a.deps.logger.Printf("[actor %s] grace period elapsed, closing", a.auctionID)
			a.close()
			a.deps.onClose(a.auctionID)
		}
		return
	}

	ctx := context.Background()
	snap, err := a.deps.store.GetByID(ctx, a.auctionID)
	if err != nil {
		a.deps.logger.Printf("[actor %s] lifecycle read: %v", a.auctionID, err)
		return
	}

	next := lifecycle.Evaluate(snap, now, a.cfg.EndingSoonThreshold)
	if next == snap.Status {
		if next == domain.StatusEnded {
			// Recovered an already-ended auction; start the grace clock.
			a.endedAt = now
		}
		return
	}

	updated, err := a.deps.store.SetStatus(ctx, a.auctionID, next)
	if err != nil {
		a.deps.logger.Printf("[actor %s] lifecycle transition to %s: %v", a.auctionID, next, err)
		return
	}

	if next == domain.StatusEnded {
		// Price and leader are frozen from here on: the validator
		// rejects everything against an ended auction.
		a.endedAt = now
		a.deps.publisher.Publish(events.AuctionEnded(updated))
		a.deps.metrics.incEnded()
		a.deps.logger.Printf("[actor %s] ended at price %d, reserve met: %v",
			a.auctionID, updated.CurrentPrice, updated.ReserveMet())
		return
	}

	a.deps.publisher.Publish(events.AuctionUpdated(updated))
}

func (a *actor) record(d validation.Decision, tx *domain.Transaction) {
	if a.deps.recorder == nil {
		return
	}
	a.deps.recorder.Record(&domain.BidDecision{
		AuctionID:     a.auctionID,
		TxHash:        tx.Hash,
		BidderAddress: tx.SenderAddress,
		Amount:        tx.Amount,
		Accepted:      d.Accepted,
		Reason:        string(d.Reason),
		DecidedAt:     time.Now().UTC(),
	})
}
