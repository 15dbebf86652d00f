package memory

import (
	"context"
	"sync"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

// DecisionArchive is an in-memory implementation of storage.DecisionArchive.
type DecisionArchive struct {
	mu        sync.RWMutex
	decisions []*domain.BidDecision
}

// NewDecisionArchive creates a new in-memory decision archive.
func NewDecisionArchive() *DecisionArchive {
	return &DecisionArchive{}
}

var _ storage.DecisionArchive = (*DecisionArchive)(nil)

// InsertBatch appends a batch of decisions.
func (s *DecisionArchive) InsertBatch(_ context.Context, decisions []*domain.BidDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range decisions {
		if d == nil {
			return storage.ErrInvalidInput
		}
		cp := *d
		s.decisions = append(s.decisions, &cp)
	}
	return nil
}

// All returns a copy of every recorded decision in insertion order.
func (s *DecisionArchive) All() []*domain.BidDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BidDecision, len(s.decisions))
	for i, d := range s.decisions {
		cp := *d
		result[i] = &cp
	}
	return result
}
