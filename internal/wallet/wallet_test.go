package wallet

import (
	"context"
	"errors"
	"testing"
)

func TestUnavailableRefusesEverything(t *testing.T) {
	var w Wallet = Unavailable{}
	ctx := context.Background()

	if _, err := w.RequestAccounts(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("RequestAccounts: expected ErrUnavailable, got %v", err)
	}
	if _, err := w.SendPayment(ctx, Payment{ToAddress: "kaspa:x", Amount: 1}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("SendPayment: expected ErrUnavailable, got %v", err)
	}
}

func TestPaymentValidate(t *testing.T) {
	tests := []struct {
		name    string
		payment Payment
		wantErr bool
	}{
		{"valid", Payment{ToAddress: "kaspa:x", Amount: 100}, false},
		{"missing address", Payment{Amount: 100}, true},
		{"zero amount", Payment{ToAddress: "kaspa:x"}, true},
		{"negative amount", Payment{ToAddress: "kaspa:x", Amount: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payment.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
