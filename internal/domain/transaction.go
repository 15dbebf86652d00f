package domain

import "time"

// Transaction is an on-chain payment as reported by the watcher.
// Timestamp is blockchain time and is authoritative for the auction
// close boundary; arrival order at the engine carries no meaning.
type Transaction struct {
	Hash             string    `json:"hash"`
	Amount           int64     `json:"amount"` // sompi
	SenderAddress    string    `json:"senderAddress"`
	RecipientAddress string    `json:"recipientAddress"`
	Timestamp        time.Time `json:"timestamp"`
	DAAScore         int64     `json:"daaScore,omitempty"` // Kaspa DAA score of the accepting block
}
