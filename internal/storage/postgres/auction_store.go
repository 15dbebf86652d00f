package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kaspa-auction-engine/internal/domain"
	"kaspa-auction-engine/internal/storage"
)

// AuctionStore implements storage.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *Pool
}

// NewAuctionStore creates a new AuctionStore.
func NewAuctionStore(pool *Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AuctionStore = (*AuctionStore)(nil)

const auctionColumns = `
	id, title, description, image_url,
	seller_address, seller_name, seller_verified,
	start_price, reserve_price, minimum_increment, current_price,
	highest_bidder_address, highest_bidder_name,
	start_time, end_time, status, bid_count, created_at
`

const bidColumns = `
	id, auction_id, bidder_address, bidder_name, amount, status,
	tx_hash, tx_timestamp, detected_at, confirmed_at, confirmation_time_ms
`

// Create adds a new auction. Returns ErrDuplicateKey if the id exists.
func (s *AuctionStore) Create(ctx context.Context, a *domain.Auction) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO auctions (
			id, title, description, image_url,
			seller_address, seller_name, seller_verified,
			start_price, reserve_price, minimum_increment, current_price,
			highest_bidder_address, highest_bidder_name,
			start_time, end_time, status, bid_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var bidderAddr, bidderName *string
	if a.HighestBidder != nil {
		bidderAddr = &a.HighestBidder.Address
		bidderName = &a.HighestBidder.Name
	}

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.ImageURL,
		a.Seller.Address, a.Seller.Name, a.Seller.Verified,
		a.StartPrice, a.ReservePrice, a.MinimumIncrement, a.CurrentPrice,
		bidderAddr, bidderName,
		a.StartTime, a.EndTime, string(a.Status), a.BidCount, a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction with its bids, newest bid first.
func (s *AuctionStore) GetByID(ctx context.Context, auctionID string) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, auctionID)
	a, err := scanAuction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get auction by id: %w", err)
	}

	if err := s.loadBids(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List retrieves all auctions, newest first.
func (s *AuctionStore) List(ctx context.Context) ([]*domain.Auction, error) {
	return s.list(ctx, `SELECT `+auctionColumns+` FROM auctions ORDER BY created_at DESC, id ASC`)
}

// ListOpen retrieves all auctions that have not ended.
func (s *AuctionStore) ListOpen(ctx context.Context) ([]*domain.Auction, error) {
	return s.list(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE status <> 'ended' ORDER BY created_at DESC, id ASC`)
}

func (s *AuctionStore) list(ctx context.Context, query string) ([]*domain.Auction, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}

	for _, a := range result {
		if err := s.loadBids(ctx, a); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ApplyAcceptedBid records an accepted bid and updates the auction state
// atomically. Replayed tx hashes return ErrDuplicateKey without touching
// the auction row.
func (s *AuctionStore) ApplyAcceptedBid(ctx context.Context, auctionID string, bid *domain.Bid) (*domain.Auction, error) {
	if bid == nil || bid.TxHash == "" {
		return nil, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertBid := `
		INSERT INTO bids (
			id, auction_id, bidder_address, bidder_name, amount, status,
			tx_hash, tx_timestamp, detected_at, confirmed_at, confirmation_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, insertBid,
		bid.ID, auctionID, bid.BidderAddress, bid.BidderName, bid.Amount, string(bid.Status),
		bid.TxHash, bid.Timestamp, bid.DetectedAt, bid.ConfirmedAt, bid.ConfirmationTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("insert bid: %w", err)
	}

	updateAuction := `
		UPDATE auctions
		SET current_price = $2,
		    highest_bidder_address = $3,
		    highest_bidder_name = $4,
		    bid_count = bid_count + 1
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateAuction, auctionID, bid.Amount, bid.BidderAddress, bid.BidderName)
	if err != nil {
		return nil, fmt.Errorf("update auction price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accepted bid: %w", err)
	}

	return s.GetByID(ctx, auctionID)
}

// AdvanceBidStatus moves a bid forward in its confirmation lifecycle.
// Backward transitions are silent no-ops returning the stored bid.
func (s *AuctionStore) AdvanceBidStatus(ctx context.Context, auctionID, txHash string, status domain.BidStatus, at time.Time, confirmationTime time.Duration) (*domain.Bid, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 AND tx_hash = $2 FOR UPDATE`,
		auctionID, txHash,
	)
	b, err := scanBid(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load bid for update: %w", err)
	}

	if !b.Status.Before(status) {
		return b, nil
	}

	b.Status = status
	switch status {
	case domain.BidStatusDetected:
		ts := at
		b.DetectedAt = &ts
	case domain.BidStatusConfirmed:
		ts := at
		b.ConfirmedAt = &ts
		b.ConfirmationTime = confirmationTime.Milliseconds()
	}

	_, err = tx.Exec(ctx,
		`UPDATE bids SET status = $3, detected_at = $4, confirmed_at = $5, confirmation_time_ms = $6
		 WHERE auction_id = $1 AND tx_hash = $2`,
		auctionID, txHash, string(b.Status), b.DetectedAt, b.ConfirmedAt, b.ConfirmationTime,
	)
	if err != nil {
		return nil, fmt.Errorf("update bid status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit bid status: %w", err)
	}
	return b, nil
}

// SetStatus updates the auction's lifecycle status.
func (s *AuctionStore) SetStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) (*domain.Auction, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE auctions SET status = $2 WHERE id = $1`, auctionID, string(status))
	if err != nil {
		return nil, fmt.Errorf("set auction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetByID(ctx, auctionID)
}

// Delete removes an auction owned by requesterAddress and without bids.
func (s *AuctionStore) Delete(ctx context.Context, auctionID, requesterAddress string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var sellerAddress string
	var bidCount int
	err = tx.QueryRow(ctx,
		`SELECT seller_address, bid_count FROM auctions WHERE id = $1 FOR UPDATE`,
		auctionID,
	).Scan(&sellerAddress, &bidCount)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load auction for delete: %w", err)
	}

	if sellerAddress != requesterAddress {
		return storage.ErrUnauthorized
	}
	if bidCount > 0 {
		return storage.ErrConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, auctionID); err != nil {
		return fmt.Errorf("delete auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// loadBids attaches the auction's bids, newest first.
func (s *AuctionStore) loadBids(ctx context.Context, a *domain.Auction) error {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY tx_timestamp DESC, id ASC`,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("load bids: %w", err)
	}
	defer rows.Close()

	a.Bids = nil
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return fmt.Errorf("scan bid: %w", err)
		}
		a.Bids = append(a.Bids, b)
	}
	return rows.Err()
}

// scanAuction scans a single row into an Auction.
func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var a domain.Auction
	var statusStr string
	var bidderAddr, bidderName *string

	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.ImageURL,
		&a.Seller.Address, &a.Seller.Name, &a.Seller.Verified,
		&a.StartPrice, &a.ReservePrice, &a.MinimumIncrement, &a.CurrentPrice,
		&bidderAddr, &bidderName,
		&a.StartTime, &a.EndTime, &statusStr, &a.BidCount, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AuctionStatus(statusStr)
	if bidderAddr != nil {
		a.HighestBidder = &domain.Bidder{Address: *bidderAddr}
		if bidderName != nil {
			a.HighestBidder.Name = *bidderName
		}
	}
	return &a, nil
}

// scanBid scans a single row into a Bid.
func scanBid(row pgx.Row) (*domain.Bid, error) {
	var b domain.Bid
	var statusStr string

	err := row.Scan(
		&b.ID, &b.AuctionID, &b.BidderAddress, &b.BidderName, &b.Amount, &statusStr,
		&b.TxHash, &b.Timestamp, &b.DetectedAt, &b.ConfirmedAt, &b.ConfirmationTime,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BidStatus(statusStr)
	return &b, nil
}

const pgErrForeignKeyViolation = "23503" // foreign_key_violation

// isForeignKeyError checks if error is a foreign key violation, which for
// bid inserts means the auction does not exist.
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrForeignKeyViolation
	}
	return false
}
