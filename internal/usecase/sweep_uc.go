// File: internal/usecase/sweep_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// SweepUseCase reconciles the entitlement ledger with the platform: it
// revokes expired grants and heals drift in either direction. One bad
// account never halts the batch; its rows stay put for the next run.
type SweepUseCase struct {
	ents      repository.EntitlementRepository
	txm       repository.TransactionManager
	authority adapter.RoleAuthority
	notifier  adapter.Notifier
	log       *zerolog.Logger
}

func NewSweepUseCase(
	ents repository.EntitlementRepository,
	txm repository.TransactionManager,
	authority adapter.RoleAuthority,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *SweepUseCase {
	l := logger.With().Str("component", "SweepUC").Logger()
	return &SweepUseCase{ents: ents, txm: txm, authority: authority, notifier: notifier, log: &l}
}

// Sweep processes every ledger record whose expiry has passed, optionally
// restricted to tierFilter. Idempotent: a second run with no intervening
// purchases removes nothing.
func (uc *SweepUseCase) Sweep(ctx context.Context, tierFilter []string) (model.SweepStats, error) {
	var stats model.SweepStats
	now := time.Now().UTC()

	expired, err := uc.ents.FindExpired(ctx, repository.NoTX, now, tierFilter)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return stats, nil
		}
		return stats, fmt.Errorf("list expired: %w", err)
	}
	stats.ExpiredFound = len(expired)

	// Group by account: revocation calls are rate-limited and expensive,
	// so one batched call covers all of an account's expired tiers.
	byAccount := make(map[int64][]string)
	for _, e := range expired {
		byAccount[e.AccountID] = append(byAccount[e.AccountID], e.TierName)
	}
	accounts := make([]int64, 0, len(byAccount))
	for id := range byAccount {
		accounts = append(accounts, id)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := uc.sweepAccount(ctx, now, accountID, byAccount[accountID], &stats); err != nil {
			stats.AccountsFailed++
			uc.log.Warn().Err(err).Int64("account_id", accountID).Msg("sweep left account for next run")
		}
	}
	return stats, nil
}

// sweepAccount handles one account inside its own atomic unit of work.
// Revocation precedes deletion; any failure leaves the account's rows
// untouched so the next sweep retries.
func (uc *SweepUseCase) sweepAccount(ctx context.Context, now time.Time, accountID int64, tiers []string, stats *model.SweepStats) error {
	var removedTiers []string

	err := uc.txm.WithAccountLock(ctx, accountID, func(ctx context.Context, tx repository.Tx) error {
		// Re-read under the lock: a concurrent purchase may have extended
		// a row between the scan and now.
		var due []string
		for _, tier := range tiers {
			e, err := uc.ents.FindByAccountAndTier(ctx, tx, accountID, tier)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return err
			}
			if e.ExpiredAt(now) {
				due = append(due, tier)
			}
		}
		if len(due) == 0 {
			return nil
		}

		exists, err := uc.authority.ResolveAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("resolve account: %w", err)
		}
		if !exists {
			// The account left the platform; nothing to revoke, the
			// ledger side is the stale one.
			for _, tier := range due {
				if _, err := uc.ents.Delete(ctx, tx, accountID, tier); err != nil {
					return err
				}
				stats.SkippedMissingAccount++
			}
			return nil
		}

		var toRevoke []string
		for _, tier := range due {
			has, err := uc.authority.HasGrant(ctx, accountID, tier)
			if err != nil {
				return fmt.Errorf("query grant %s: %w", tier, err)
			}
			if !has {
				// Drift: the platform already dropped the grant. Trust
				// reality and discard the stale ledger row.
				if _, err := uc.ents.Delete(ctx, tx, accountID, tier); err != nil {
					return err
				}
				stats.SkippedMissingExternal++
				continue
			}
			toRevoke = append(toRevoke, tier)
		}
		if len(toRevoke) == 0 {
			return nil
		}

		outcomes, err := uc.authority.RevokeBatch(ctx, accountID, toRevoke)
		if err != nil {
			// Forbidden, rate-limited or timed out: keep every row.
			return fmt.Errorf("revoke batch: %w", err)
		}
		for _, o := range outcomes {
			if o.Err != nil {
				uc.log.Warn().Err(o.Err).
					Int64("account_id", accountID).
					Str("tier", o.Tier).
					Msg("revoke failed for tier; row kept")
				continue
			}
			if _, err := uc.ents.Delete(ctx, tx, accountID, o.Tier); err != nil {
				return err
			}
			if o.AlreadyAbsent {
				stats.SkippedAlreadyRevoked++
				continue
			}
			stats.Removed++
			removedTiers = append(removedTiers, o.Tier)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// One reconciliation notification per revoked tier, after commit.
	for _, tier := range removedTiers {
		uc.notifier.Notify(ctx, model.Notification{
			AccountID: accountID,
			TierName:  tier,
			Kind:      model.NotifyExpired,
		})
	}
	return nil
}
