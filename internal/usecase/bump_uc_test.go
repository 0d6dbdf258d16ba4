//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/usecase"
)

func TestBumpClaim(t *testing.T) {
	ctx := context.Background()
	wallet := NewMockWallet()
	uc := usecase.NewBumpUseCase(NewMockCooldowns(), wallet, 25, time.Hour, newTestLogger())

	bonus, err := uc.Claim(ctx, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bonus != 25 || wallet.Balances[1] != 25 {
		t.Errorf("bonus = %d, balance = %d, want 25", bonus, wallet.Balances[1])
	}

	if _, err := uc.Claim(ctx, 1); !errors.Is(err, domain.ErrOnCooldown) {
		t.Errorf("second claim inside the window: expected ErrOnCooldown, got %v", err)
	}
	if wallet.Balances[1] != 25 {
		t.Errorf("balance must be unchanged by a rejected claim, got %d", wallet.Balances[1])
	}

	// An independent account claims freely.
	if _, err := uc.Claim(ctx, 2); err != nil {
		t.Errorf("other account: expected no error, got %v", err)
	}
}
