// Package wallet defines the signing capability boundary. The engine
// never signs or broadcasts transactions; anything that needs a payment
// made (a settlement process, an operator tool) receives a Wallet from
// its caller.
package wallet

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that no wallet capability is present. Callers
// should degrade to read-only behavior rather than fail hard.
var ErrUnavailable = errors.New("wallet unavailable")

// Payment is one outbound transfer request.
type Payment struct {
	ToAddress string
	Amount    int64 // sompi
	// Memo is attached as transaction payload when supported.
	Memo string
}

// Wallet is the signing capability. Implementations wrap a browser
// extension bridge, a hardware signer, or a node-managed keystore.
type Wallet interface {
	// RequestAccounts returns the addresses the wallet controls.
	RequestAccounts(ctx context.Context) ([]string, error)
	// SendPayment signs and submits a transfer, returning the tx hash.
	SendPayment(ctx context.Context, p Payment) (string, error)
}

// Unavailable is a Wallet that refuses every operation. It is the
// default when no signer is configured.
type Unavailable struct{}

var _ Wallet = Unavailable{}

func (Unavailable) RequestAccounts(context.Context) ([]string, error) {
	return nil, ErrUnavailable
}

func (Unavailable) SendPayment(context.Context, Payment) (string, error) {
	return "", ErrUnavailable
}

// Validate rejects payments that could never be signed.
func (p Payment) Validate() error {
	if p.ToAddress == "" {
		return fmt.Errorf("payment: missing destination address")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("payment: amount must be positive, got %d", p.Amount)
	}
	return nil
}
