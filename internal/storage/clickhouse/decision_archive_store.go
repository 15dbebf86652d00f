package clickhouse

import (
	"context"
	"fmt"
	"time"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

// DecisionArchiveStore implements storage.DecisionArchive using ClickHouse.
// The table is append-only; MergeTree does not enforce uniqueness and the
// archive does not need it, duplicates are tolerated in analytics.
type DecisionArchiveStore struct {
	conn *Conn
}

// NewDecisionArchiveStore creates a new DecisionArchiveStore.
func NewDecisionArchiveStore(conn *Conn) *DecisionArchiveStore {
	return &DecisionArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionArchive = (*DecisionArchiveStore)(nil)

// InsertBatch appends a batch of decisions.
func (s *DecisionArchiveStore) InsertBatch(ctx context.Context, decisions []*domain.BidDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bid_decisions (
			auction_id, tx_hash, bidder_address, amount, accepted, reason, decided_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range decisions {
		if d == nil {
			return storage.ErrInvalidInput
		}
		accepted := uint8(0)
		if d.Accepted {
			accepted = 1
		}
		err = batch.Append(
			d.AuctionID, d.TxHash, d.BidderAddress, d.Amount,
			accepted, d.Reason, d.DecidedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountByAuction returns accepted and rejected decision counts for an auction.
func (s *DecisionArchiveStore) CountByAuction(ctx context.Context, auctionID string) (accepted, rejected uint64, err error) {
	query := `
		SELECT countIf(accepted = 1), countIf(accepted = 0)
		FROM bid_decisions
		WHERE auction_id = ?
	`
	row := s.conn.QueryRow(ctx, query, auctionID)
	if err := row.Scan(&accepted, &rejected); err != nil {
		return 0, 0, fmt.Errorf("count decisions: %w", err)
	}
	return accepted, rejected, nil
}

// GetByAuction retrieves all decisions for an auction ordered by decision time.
func (s *DecisionArchiveStore) GetByAuction(ctx context.Context, auctionID string) ([]*domain.BidDecision, error) {
	query := `
		SELECT auction_id, tx_hash, bidder_address, amount, accepted, reason, decided_at
		FROM bid_decisions
		WHERE auction_id = ?
		ORDER BY decided_at ASC
	`

	rows, err := s.conn.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var result []*domain.BidDecision
	for rows.Next() {
		var d domain.BidDecision
		var accepted uint8
		var decidedAt time.Time
		if err := rows.Scan(&d.AuctionID, &d.TxHash, &d.BidderAddress, &d.Amount, &accepted, &d.Reason, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Accepted = accepted == 1
		d.DecidedAt = decidedAt
		result = append(result, &d)
	}
	return result, rows.Err()
}
