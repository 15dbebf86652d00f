// Package confirmation tracks bids through their confirmation lifecycle.
package confirmation

import (
	"sync"
	"time"
)

// Tracker indexes in-flight bids by tx hash so confirmation signals from
// the watcher can be routed to the owning auction and timed. The auction
// store remains the source of truth for bid status; the tracker only
// routes and measures.
//
// Entries are registered when a bid is accepted, marked on detection and
// evicted on confirmation. Unknown hashes resolve to nothing, which is
// how signals for unrelated transfers are silently ignored.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	auctionID  string
	detectedAt time.Time
	detected   bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Register starts tracking a pending bid's tx hash. Re-registering an
// already tracked hash is a no-op so duplicate acceptance paths stay
// idempotent.
func (t *Tracker) Register(txHash, auctionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[txHash]; exists {
		return
	}
	t.entries[txHash] = &entry{auctionID: auctionID}
}

// Restore re-registers a bid that was already detected before a restart,
// preserving its detection instant for latency measurement.
func (t *Tracker) Restore(txHash, auctionID string, detectedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[txHash] = &entry{auctionID: auctionID, detectedAt: detectedAt, detected: true}
}

// Lookup resolves a tx hash to the auction that owns it.
func (t *Tracker) Lookup(txHash string) (auctionID string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[txHash]
	if !ok {
		return "", false
	}
	return e.auctionID, true
}

// MarkDetected records that the transaction was seen in the mempool or a
// candidate block. Returns false if the hash is unknown or already
// detected, making duplicate delivery a no-op.
func (t *Tracker) MarkDetected(txHash string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[txHash]
	if !ok || e.detected {
		return false
	}
	e.detected = true
	e.detectedAt = at
	return true
}

// Confirm finalizes a tracked bid and evicts it, returning the latency
// from detection to confirmation. A bid confirmed without an observed
// detection reports zero latency. Returns ok=false for unknown hashes,
// which covers both unrelated transfers and re-delivered confirmations.
func (t *Tracker) Confirm(txHash string, at time.Time) (latency time.Duration, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[txHash]
	if !ok {
		return 0, false
	}
	delete(t.entries, txHash)

	if !e.detected {
		return 0, true
	}
	latency = at.Sub(e.detectedAt)
	if latency < 0 {
		latency = 0
	}
	return latency, true
}

// Len reports the number of tracked in-flight bids.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
