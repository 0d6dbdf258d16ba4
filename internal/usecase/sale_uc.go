// File: internal/usecase/sale_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// SaleUseCase handles account-initiated early termination: revoke the
// grant, delete the ledger row and credit the prorated refund, with
// compensation so a partial failure never leaves the two sides diverged.
type SaleUseCase struct {
	catalog   *model.Catalog
	ents      repository.EntitlementRepository
	txm       repository.TransactionManager
	authority adapter.RoleAuthority
	wallet    adapter.Wallet
	mod       adapter.Moderation
	notifier  adapter.Notifier
	log       *zerolog.Logger
}

func NewSaleUseCase(
	catalog *model.Catalog,
	ents repository.EntitlementRepository,
	txm repository.TransactionManager,
	authority adapter.RoleAuthority,
	wallet adapter.Wallet,
	mod adapter.Moderation,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *SaleUseCase {
	l := logger.With().Str("component", "SaleUC").Logger()
	return &SaleUseCase{
		catalog:   catalog,
		ents:      ents,
		txm:       txm,
		authority: authority,
		wallet:    wallet,
		mod:       mod,
		notifier:  notifier,
		log:       &l,
	}
}

// Sell terminates the account's entitlement to tier and returns the refund
// credited to its wallet.
func (uc *SaleUseCase) Sell(ctx context.Context, accountID int64, tier string) (int64, error) {
	t, ok := uc.catalog.Tier(tier)
	if !ok {
		return 0, domain.ErrUnknownTier
	}
	if accountID <= 0 {
		return 0, domain.ErrInvalidArgument
	}

	var refund int64
	err := uc.txm.WithAccountLock(ctx, accountID, func(ctx context.Context, tx repository.Tx) error {
		has, err := uc.authority.HasGrant(ctx, accountID, tier)
		if err != nil {
			return fmt.Errorf("query grant: %w", err)
		}
		if !has {
			return domain.ErrNotHeldExternally
		}

		ent, err := uc.ents.FindByAccountAndTier(ctx, tx, accountID, tier)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrNotHeldInternally
			}
			return err
		}
		refund = model.Refund(ent.ExpiresAt, t.Price)

		outcomes, err := uc.authority.RevokeBatch(ctx, accountID, []string{tier})
		if err != nil {
			return fmt.Errorf("revoke: %w", err)
		}
		for _, o := range outcomes {
			if o.Err != nil {
				return fmt.Errorf("revoke %s: %w", o.Tier, o.Err)
			}
		}

		n, err := uc.ents.Delete(ctx, tx, accountID, tier)
		if err == nil && n == 0 {
			err = domain.ErrNoRowsAffected
		}
		if err != nil {
			// The grant is already revoked; put it back before failing so
			// the ledger and the platform stay in agreement.
			if _, regrantErr := uc.authority.Grant(ctx, accountID, tier); regrantErr != nil {
				uc.log.Error().Err(regrantErr).
					Int64("account_id", accountID).
					Str("tier", tier).
					Msg("re-grant after failed sale delete also failed")
			}
			return fmt.Errorf("delete entitlement: %w", err)
		}

		if refund > 0 {
			if err := uc.wallet.Credit(ctx, accountID, refund); err != nil {
				return fmt.Errorf("credit refund: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Delegated privileges ride on tier possession; strip them now that
	// the sale is committed.
	if err := uc.mod.StripDelegated(ctx, accountID, tier); err != nil {
		uc.log.Warn().Err(err).Int64("account_id", accountID).Str("tier", tier).Msg("strip delegated privileges failed")
	}
	uc.notifier.Notify(ctx, model.Notification{
		AccountID: accountID,
		TierName:  tier,
		Kind:      model.NotifySold,
		Amount:    refund,
	})
	uc.log.Info().Int64("account_id", accountID).Str("tier", tier).Int64("refund", refund).Msg("entitlement sold")
	return refund, nil
}
