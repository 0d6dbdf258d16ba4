package repository

import (
	"context"
	"time"

	"telegram-tier-entitlements/internal/domain/model"
)

// EntitlementRepository is the port for the entitlement ledger. The ledger
// exclusively owns (account, tier, expiry) records; the platform only
// mirrors possession.
type EntitlementRepository interface {
	// Save upserts by (account_id, tier_name).
	Save(ctx context.Context, tx Tx, e *model.Entitlement) error
	FindByAccount(ctx context.Context, tx Tx, accountID int64) ([]*model.Entitlement, error)
	FindByAccountAndTier(ctx context.Context, tx Tx, accountID int64, tier string) (*model.Entitlement, error)
	// FindExpired returns records with expires_at <= now, optionally
	// restricted to the given tier names, ordered by account.
	FindExpired(ctx context.Context, tx Tx, now time.Time, tiers []string) ([]*model.Entitlement, error)
	// Delete returns the number of rows removed so callers can detect a
	// delete that silently missed.
	Delete(ctx context.Context, tx Tx, accountID int64, tier string) (int64, error)

	// CountByTier feeds the entitlement gauges.
	CountByTier(ctx context.Context, tx Tx) (map[string]int, error)
}
