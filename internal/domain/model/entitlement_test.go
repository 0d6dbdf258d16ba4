//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
)

func TestNewEntitlement(t *testing.T) {
	e, err := model.NewEntitlement(1, "gold", 30)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := e.RemainingAt(time.Now()); got < 29*24*time.Hour {
		t.Errorf("remaining = %v, want about 30 days", got)
	}
	if e.ExternalAssignmentID != nil {
		t.Error("a fresh entitlement has no platform assignment yet")
	}

	for _, bad := range []struct {
		accountID int64
		tier      string
		days      int
	}{
		{0, "gold", 30},
		{1, "", 30},
		{1, "gold", 0},
	} {
		if _, err := model.NewEntitlement(bad.accountID, bad.tier, bad.days); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("NewEntitlement(%d, %q, %d): expected ErrInvalidArgument, got %v", bad.accountID, bad.tier, bad.days, err)
		}
	}
}

func TestEntitlement_Extend(t *testing.T) {
	e, _ := model.NewEntitlement(1, "gold", 30)
	before := e.ExpiresAt

	e.Extend(15)
	if got := e.ExpiresAt.Sub(before); got != 15*24*time.Hour {
		t.Errorf("extend moved expiry by %v, want 15 days", got)
	}

	e.Extend(0)
	e.Extend(-5)
	if !e.ExpiresAt.Equal(before.Add(15 * 24 * time.Hour)) {
		t.Error("non-positive extensions must not move the expiry")
	}
}

func TestEntitlement_ExpiredAt(t *testing.T) {
	e, _ := model.NewEntitlement(1, "gold", 30)
	if e.ExpiredAt(time.Now()) {
		t.Error("fresh entitlement must not be expired")
	}
	if !e.ExpiredAt(e.ExpiresAt) {
		t.Error("an entitlement is due exactly at its expiry instant")
	}
	if got := e.RemainingAt(e.ExpiresAt.Add(time.Hour)); got != 0 {
		t.Errorf("remaining after expiry = %v, want 0", got)
	}
}
