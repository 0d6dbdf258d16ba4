package model

import (
	"time"

	"telegram-tier-entitlements/internal/domain"
)

// Entitlement is a time-bound grant of a tier to an account. The ledger row
// is the source of truth for expiry; the platform's own membership state is
// the source of truth for current possession only.
type Entitlement struct {
	AccountID            int64
	TierName             string
	ExpiresAt            time.Time
	ExternalAssignmentID *string // opaque handle into the platform, nil until granted
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewEntitlement creates a fresh entitlement running for durationDays.
func NewEntitlement(accountID int64, tier string, durationDays int) (*Entitlement, error) {
	if accountID <= 0 || tier == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Entitlement{
		AccountID: accountID,
		TierName:  tier,
		ExpiresAt: now.Add(time.Duration(durationDays) * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Extend pushes the expiry forward by days. Extensions never shorten the
// remaining time.
func (e *Entitlement) Extend(days int) {
	if days <= 0 {
		return
	}
	e.ExpiresAt = e.ExpiresAt.Add(time.Duration(days) * 24 * time.Hour)
	e.UpdatedAt = time.Now().UTC()
}

// RemainingAt returns the time left at the given instant, floored at zero.
func (e *Entitlement) RemainingAt(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// ExpiredAt reports whether the entitlement is due at the given instant.
func (e *Entitlement) ExpiredAt(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
