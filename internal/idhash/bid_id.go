// Package idhash derives deterministic identifiers from on-chain data.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// BidID computes a deterministic bid identifier.
// Formula: base58(SHA256(auction_id|tx_hash)).
// Reprocessing the same transaction for the same auction always yields
// the same id, which keeps duplicate delivery idempotent end to end.
func BidID(auctionID, txHash string) string {
	data := fmt.Sprintf("%s|%s", auctionID, txHash)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
