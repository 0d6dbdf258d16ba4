//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/usecase"
)

func expiredEntitlement(accountID int64, tier string) *model.Entitlement {
	e, _ := model.NewEntitlement(accountID, tier, 30)
	e.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	return e
}

func newSweepFixture() (*usecase.SweepUseCase, *MockEntitlementRepo, *MockAuthority, *MockNotifier) {
	catalog := testCatalog()
	ents := NewMockEntitlementRepo()
	authority := NewMockAuthority(catalog)
	notifier := &MockNotifier{}
	uc := usecase.NewSweepUseCase(ents, NewMockTxManager(), authority, notifier, newTestLogger())
	return uc, ents, authority, notifier
}

func TestSweep_RemovesExpired(t *testing.T) {
	ctx := context.Background()
	uc, ents, authority, notifier := newSweepFixture()

	authority.SetGrant(1, "silver", true)
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))

	stats, err := uc.Sweep(ctx, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.ExpiredFound != 1 || stats.Removed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if ents.Has(1, "silver") {
		t.Error("expired row must be deleted")
	}
	if held, _ := authority.HasGrant(ctx, 1, "silver"); held {
		t.Error("expired grant must be revoked")
	}
	if kinds := notifier.Kinds(); len(kinds) != 1 || kinds[0] != model.NotifyExpired {
		t.Errorf("expected one expired notification, got %v", kinds)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	ctx := context.Background()
	uc, ents, authority, _ := newSweepFixture()

	authority.SetGrant(1, "silver", true)
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))

	if _, err := uc.Sweep(ctx, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stats, err := uc.Sweep(ctx, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Removed != 0 || stats.ExpiredFound != 0 {
		t.Errorf("second run must find nothing: %+v", stats)
	}
	if ents.Len() != 0 {
		t.Error("ledger must be unchanged by the second run")
	}
}

func TestSweep_BatchesRevocationsPerAccount(t *testing.T) {
	ctx := context.Background()
	uc, ents, authority, _ := newSweepFixture()

	authority.SetGrant(1, "silver", true)
	authority.SetGrant(1, "gold", true)
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "gold"))

	stats, err := uc.Sweep(ctx, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Removed != 2 {
		t.Errorf("expected both tiers removed, got %+v", stats)
	}
	if authority.RevokeCalls != 1 {
		t.Errorf("expected one batched revoke call, got %d", authority.RevokeCalls)
	}
}

func TestSweep_DriftSelfHeal(t *testing.T) {
	ctx := context.Background()

	t.Run("grant vanished externally", func(t *testing.T) {
		uc, ents, authority, _ := newSweepFixture()
		authority.AddAccount(1) // account exists, but no grant
		_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))

		stats, err := uc.Sweep(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.SkippedMissingExternal != 1 || stats.Removed != 0 {
			t.Errorf("unexpected stats: %+v", stats)
		}
		if ents.Has(1, "silver") {
			t.Error("stale ledger row must be discarded")
		}
		if authority.RevokeCalls != 0 {
			t.Error("no revocation may be attempted for an absent grant")
		}
	})

	t.Run("account left the platform", func(t *testing.T) {
		uc, ents, authority, _ := newSweepFixture()
		// Account 2 is never registered with the authority.
		_ = ents.Save(ctx, nil, expiredEntitlement(2, "silver"))
		_ = ents.Save(ctx, nil, expiredEntitlement(2, "gold"))

		stats, err := uc.Sweep(ctx, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.SkippedMissingAccount != 2 {
			t.Errorf("unexpected stats: %+v", stats)
		}
		if ents.Len() != 0 {
			t.Error("rows of a vanished account must be discarded")
		}
		if authority.RevokeCalls != 0 {
			t.Error("no revocation may be attempted for a missing account")
		}
	})
}

func TestSweep_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	uc, ents, authority, _ := newSweepFixture()

	authority.SetGrant(1, "silver", true)
	authority.SetGrant(2, "silver", true)
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))
	_ = ents.Save(ctx, nil, expiredEntitlement(2, "silver"))

	authority.RevokeBatchFunc = func(ctx context.Context, accountID int64, tiers []string) ([]adapter.RevokeOutcome, error) {
		if accountID == 1 {
			return nil, domain.ErrForbidden
		}
		out := make([]adapter.RevokeOutcome, 0, len(tiers))
		for _, tier := range tiers {
			out = append(out, adapter.RevokeOutcome{Tier: tier})
		}
		return out, nil
	}

	stats, err := uc.Sweep(ctx, nil)
	if err != nil {
		t.Fatalf("a per-account failure must not fail the batch: %v", err)
	}
	if stats.Removed != 1 || stats.AccountsFailed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !ents.Has(1, "silver") {
		t.Error("the failing account's row must be left for the next run")
	}
	if ents.Has(2, "silver") {
		t.Error("the healthy account's row must be removed")
	}
}

func TestSweep_TierFilter(t *testing.T) {
	ctx := context.Background()
	uc, ents, authority, _ := newSweepFixture()

	authority.SetGrant(1, "silver", true)
	authority.SetGrant(1, "gold", true)
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "silver"))
	_ = ents.Save(ctx, nil, expiredEntitlement(1, "gold"))

	stats, err := uc.Sweep(ctx, []string{"gold"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.Removed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !ents.Has(1, "silver") || ents.Has(1, "gold") {
		t.Error("only the filtered tier may be swept")
	}
}
