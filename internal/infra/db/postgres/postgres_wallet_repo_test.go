//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"telegram-tier-entitlements/internal/domain"
)

func TestWalletRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	wallet := NewWalletRepo(testPool)

	t.Run("credit creates the row and accumulates", func(t *testing.T) {
		cleanup(t)

		if err := wallet.Credit(ctx, 1, 100); err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
		if err := wallet.Credit(ctx, 1, 50); err != nil {
			t.Fatalf("second Credit failed: %v", err)
		}
		b, err := wallet.Balance(ctx, 1)
		if err != nil || b != 150 {
			t.Fatalf("Balance = (%d, %v), want (150, nil)", b, err)
		}
	})

	t.Run("debit never overdraws", func(t *testing.T) {
		cleanup(t)

		if err := wallet.Credit(ctx, 1, 100); err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
		if err := wallet.Debit(ctx, 1, 60); err != nil {
			t.Fatalf("Debit failed: %v", err)
		}
		if err := wallet.Debit(ctx, 1, 60); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
		b, _ := wallet.Balance(ctx, 1)
		if b != 40 {
			t.Errorf("balance after failed debit = %d, want 40", b)
		}

		// Debit against an account with no wallet row at all.
		if err := wallet.Debit(ctx, 99, 1); !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("expected ErrInsufficientFunds for a missing wallet, got %v", err)
		}
	})

	t.Run("unknown account reads as empty", func(t *testing.T) {
		cleanup(t)
		b, err := wallet.Balance(ctx, 42)
		if err != nil || b != 0 {
			t.Errorf("Balance = (%d, %v), want (0, nil)", b, err)
		}
	})
}
