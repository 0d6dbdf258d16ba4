// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
	"telegram-tier-entitlements/internal/infra/logging"
)

// PurchaseUseCase is the decision engine for incoming payments. For every
// payment it takes exactly one of the mutually exclusive paths: partial
// top-up, upgrade, or normal purchase/extension; a payment that an already
// better-entitled account cannot use becomes wallet balance instead.
type PurchaseUseCase struct {
	catalog   *model.Catalog
	ents      repository.EntitlementRepository
	txm       repository.TransactionManager
	authority adapter.RoleAuthority
	wallet    adapter.Wallet
	mod       adapter.Moderation
	notifier  adapter.Notifier
	log       *zerolog.Logger
}

func NewPurchaseUseCase(
	catalog *model.Catalog,
	ents repository.EntitlementRepository,
	txm repository.TransactionManager,
	authority adapter.RoleAuthority,
	wallet adapter.Wallet,
	mod adapter.Moderation,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *PurchaseUseCase {
	l := logger.With().Str("component", "PurchaseUC").Logger()
	return &PurchaseUseCase{
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

// Purchase applies a resolved payment of `amount` toward `tierName` for the
// account. The store commit happens only after every platform mutation the
// path needs has succeeded, and wallet-funded paths pay before any platform
// mutation, so an aborted purchase leaves the platform, the ledger and the
// wallet all untouched.
func (uc *PurchaseUseCase) Purchase(ctx context.Context, accountID int64, tierName string, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error) {
	target, ok := uc.catalog.Tier(tierName)
	if !ok {
		return nil, domain.ErrUnknownTier
	}
	if accountID <= 0 || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithAccountID(logging.WithTier(ctx, tierName), accountID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "PurchaseUC.Purchase")()

	var outcome *model.PurchaseOutcome
	err := uc.txm.WithAccountLock(ctx, accountID, func(ctx context.Context, tx repository.Tx) error {
		o, err := uc.decide(ctx, tx, accountID, target, amount, origin, yearly)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Path != model.PathWalletCredit {
		// Restriction markers fall off with any successful purchase. A
		// failure here never unwinds the purchase itself.
		if err := uc.mod.LiftRestrictions(ctx, accountID); err != nil {
			log.Warn().Err(err).Msg("lift restrictions failed")
		}
		uc.notifier.Notify(ctx, model.Notification{
			AccountID: accountID,
			TierName:  outcome.TierName,
			Kind:      kindForPath(outcome.Path),
			Amount:    outcome.RefundIssued,
		})
	}

	log.Info().
		Str("affected_tier", outcome.TierName).
		Str("path", string(outcome.Path)).
		Int("days_added", outcome.DaysAdded).
		Int64("wallet_delta", outcome.WalletDelta).
		Msg("purchase settled")
	return outcome, nil
}

// decide runs the path selection inside the account's transaction.
// Order is fixed: partial, downgrade guard, upgrade, normal; first match
// wins.
func (uc *PurchaseUseCase) decide(ctx context.Context, tx repository.Tx, accountID int64, target model.TierDefinition, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error) {
	now := time.Now().UTC()

	held, err := uc.ents.FindByAccount(ctx, tx, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load entitlements: %w", err)
	}

	// Effective tier is always re-resolved against the platform, never
	// read from a cached ledger field.
	effectiveTier, effectiveHeld, err := uc.authority.ResolveEffectiveTier(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve effective tier: %w", err)
	}

	current := uc.highestHeld(held)

	// PARTIAL: fractional payments at a tier's price points top up whatever
	// the account already holds, not the lower tier itself. Checked before
	// the downgrade guard: a top-up at a lower tier's price point is the
	// intended way to extend a better-entitled account.
	if days := uc.catalog.PartialExtensionDays(target.Name, amount); days > 0 &&
		current != nil && effectiveHeld &&
		uc.catalog.PriorityOf(effectiveTier) >= target.Priority {
		return uc.applyPartial(ctx, tx, current, amount, days, origin)
	}

	// Downgrade guard: an ingested payment never demotes an account that
	// already holds something better; the money becomes plain balance.
	if effectiveHeld && origin == model.OriginIngested &&
		uc.catalog.PriorityOf(effectiveTier) > target.Priority {
		if err := uc.wallet.Credit(ctx, accountID, amount); err != nil {
			return nil, fmt.Errorf("credit wallet: %w", err)
		}
		return &model.PurchaseOutcome{
			Path:        model.PathWalletCredit,
			TierName:    target.Name,
			WalletDelta: amount,
		}, nil
	}

	// UPGRADE: only when the current entitlement is due for renewal and the
	// target is the immediate next-higher tier.
	if current != nil {
		if o, ok, err := uc.tryUpgrade(ctx, tx, now, current, target, amount, origin); err != nil {
			return nil, err
		} else if ok {
			return o, nil
		}
	}

	return uc.applyNormal(ctx, tx, accountID, current, held, target, amount, origin, yearly)
}

func (uc *PurchaseUseCase) applyPartial(ctx context.Context, tx repository.Tx, current *model.Entitlement, amount int64, days int, origin model.PaymentOrigin) (*model.PurchaseOutcome, error) {
	current.Extend(days)
	if err := uc.ents.Save(ctx, tx, current); err != nil {
		return nil, fmt.Errorf("extend entitlement: %w", err)
	}
	if origin == model.OriginWallet {
		if err := uc.wallet.Debit(ctx, current.AccountID, amount); err != nil {
			return nil, err
		}
	}
	return &model.PurchaseOutcome{
		Path:        model.PathPartial,
		TierName:    current.TierName,
		DaysAdded:   days,
		WalletDelta: -amount,
	}, nil
}

// tryUpgrade returns ok=false when the upgrade conditions do not hold so
// the decision falls through to the normal path.
func (uc *PurchaseUseCase) tryUpgrade(ctx context.Context, tx repository.Tx, now time.Time, current *model.Entitlement, target model.TierDefinition, amount int64, origin model.PaymentOrigin) (*model.PurchaseOutcome, bool, error) {
	curTier, ok := uc.catalog.Tier(current.TierName)
	if !ok {
		return nil, false, nil
	}
	next, ok := uc.catalog.NextAbove(current.TierName)
	if !ok || next.Name != target.Name {
		return nil, false, nil
	}
	base := time.Duration(curTier.DurationDays) * 24 * time.Hour
	remaining := current.RemainingAt(now)
	if remaining < base-24*time.Hour || remaining > base {
		return nil, false, nil
	}
	cost := uc.catalog.UpgradeCost(current.TierName, target.Name)
	if amount < cost {
		return nil, false, nil
	}

	refund := model.RefundAt(now, current.ExpiresAt, curTier.Price)
	// The refund is credited against the payment, never paid out
	// separately: net spend is amount-refund.
	net := amount - refund
	if net < 0 {
		net = 0
	}

	// Money first: a wallet-funded upgrade that cannot pay is turned away
	// before any platform mutation. A later failure hands the debit back.
	if origin == model.OriginWallet && net > 0 {
		if err := uc.wallet.Debit(ctx, current.AccountID, net); err != nil {
			return nil, false, err
		}
	}
	handBack := func() {
		if origin != model.OriginWallet || net == 0 {
			return
		}
		if err := uc.wallet.Credit(ctx, current.AccountID, net); err != nil {
			uc.log.Error().Err(err).
				Int64("account_id", current.AccountID).
				Int64("amount", net).
				Msg("hand-back of an aborted upgrade debit failed; balance is short")
		}
	}

	// Platform second, ledger last: revoke the old grant, issue the new
	// one, and only then touch the store so an external failure aborts
	// before any ledger write.
	if err := uc.revokeOne(ctx, current.AccountID, current.TierName); err != nil {
		handBack()
		return nil, false, err
	}
	assignment, err := uc.authority.Grant(ctx, current.AccountID, target.Name)
	if err != nil {
		// The old grant is already gone; put it back so the two sides do
		// not diverge from a half-done upgrade.
		if _, regrantErr := uc.authority.Grant(ctx, current.AccountID, current.TierName); regrantErr != nil {
			uc.log.Error().Err(regrantErr).
				Int64("account_id", current.AccountID).
				Str("tier", current.TierName).
				Msg("re-grant after failed upgrade also failed; ledger still holds the old tier")
		}
		handBack()
		return nil, false, fmt.Errorf("grant %s: %w", target.Name, err)
	}

	// From here a failed store write rolls the transaction back to the
	// old tier, so the platform has to be rewound to match.
	rewind := func() {
		if err := uc.revokeOne(ctx, current.AccountID, target.Name); err != nil {
			uc.log.Error().Err(err).
				Int64("account_id", current.AccountID).
				Str("tier", target.Name).
				Msg("rewind of an aborted upgrade left the new tier granted")
		}
		if _, err := uc.authority.Grant(ctx, current.AccountID, current.TierName); err != nil {
			uc.log.Error().Err(err).
				Int64("account_id", current.AccountID).
				Str("tier", current.TierName).
				Msg("rewind of an aborted upgrade could not restore the old tier")
		}
		handBack()
	}

	if _, err := uc.ents.Delete(ctx, tx, current.AccountID, current.TierName); err != nil {
		rewind()
		return nil, false, fmt.Errorf("remove old entitlement: %w", err)
	}
	upgraded, err := model.NewEntitlement(current.AccountID, target.Name, target.DurationDays)
	if err != nil {
		rewind()
		return nil, false, err
	}
	upgraded.ExternalAssignmentID = &assignment
	if err := uc.ents.Save(ctx, tx, upgraded); err != nil {
		rewind()
		return nil, false, fmt.Errorf("save upgraded entitlement: %w", err)
	}

	// An ingested payment gets its refund back as balance. The upgrade
	// itself is done; a failed credit is an incident to log, not a reason
	// to unwind a committed tier change.
	if origin != model.OriginWallet && refund > 0 {
		if err := uc.wallet.Credit(ctx, current.AccountID, refund); err != nil {
			uc.log.Error().Err(err).
				Int64("account_id", current.AccountID).
				Int64("amount", refund).
				Msg("upgrade refund credit failed; amount owed to account")
		}
	}
	return &model.PurchaseOutcome{
		Path:         model.PathUpgrade,
		TierName:     target.Name,
		DaysAdded:    target.DurationDays,
		RefundIssued: refund,
		WalletDelta:  refund - amount,
	}, true, nil
}

func (uc *PurchaseUseCase) applyNormal(ctx context.Context, tx repository.Tx, accountID int64, current *model.Entitlement, held []*model.Entitlement, target model.TierDefinition, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error) {
	days := target.DurationDays
	price := target.Price
	if yearly {
		days = model.YearlyDurationDays
		price = target.Price * 12
	}

	if amount < price {
		// No path can use this amount. An account with an entitlement has
		// hit the gap between the partial price points and a full
		// purchase; that ambiguity is surfaced, not guessed at.
		if current != nil {
			return nil, domain.ErrUnsupportedAmount
		}
		return nil, domain.ErrInsufficientFunds
	}

	var same *model.Entitlement
	for _, e := range held {
		if e.TierName == target.Name {
			same = e
			break
		}
	}

	// Money first: a wallet-funded purchase pays inside the account lock,
	// before any platform mutation, so an unfunded account is turned away
	// with nothing to undo. A later failure hands the debit back.
	if origin == model.OriginWallet {
		if err := uc.wallet.Debit(ctx, accountID, price); err != nil {
			return nil, err
		}
	}
	handBack := func() {
		if origin != model.OriginWallet {
			return
		}
		if err := uc.wallet.Credit(ctx, accountID, price); err != nil {
			uc.log.Error().Err(err).
				Int64("account_id", accountID).
				Int64("amount", price).
				Msg("hand-back of an aborted purchase debit failed; balance is short")
		}
	}

	if same != nil {
		same.Extend(days)
		if err := uc.ents.Save(ctx, tx, same); err != nil {
			handBack()
			return nil, fmt.Errorf("extend entitlement: %w", err)
		}
	} else {
		// External grant precedes the store commit so a failed ledger
		// write can be retried without having granted nothing.
		assignment, err := uc.authority.Grant(ctx, accountID, target.Name)
		if err != nil {
			handBack()
			return nil, fmt.Errorf("grant %s: %w", target.Name, err)
		}
		fresh, err := model.NewEntitlement(accountID, target.Name, days)
		if err != nil {
			handBack()
			return nil, err
		}
		fresh.ExternalAssignmentID = &assignment
		if err := uc.ents.Save(ctx, tx, fresh); err != nil {
			handBack()
			return nil, fmt.Errorf("save entitlement: %w", err)
		}
	}

	// Any remainder of an ingested payment becomes balance. The purchase
	// itself is done; a failed remainder credit is an incident to log,
	// not a reason to unwind a granted tier.
	if origin != model.OriginWallet {
		if rest := amount - price; rest > 0 {
			if err := uc.wallet.Credit(ctx, accountID, rest); err != nil {
				uc.log.Error().Err(err).
					Int64("account_id", accountID).
					Int64("amount", rest).
					Msg("remainder credit failed; amount owed to account")
			}
		}
	}
	return &model.PurchaseOutcome{
		Path:        model.PathNormal,
		TierName:    target.Name,
		DaysAdded:   days,
		WalletDelta: -price,
	}, nil
}

func (uc *PurchaseUseCase) revokeOne(ctx context.Context, accountID int64, tier string) error {
	outcomes, err := uc.authority.RevokeBatch(ctx, accountID, []string{tier})
	if err != nil {
		return fmt.Errorf("revoke %s: %w", tier, err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			return fmt.Errorf("revoke %s: %w", o.Tier, o.Err)
		}
	}
	return nil
}

// highestHeld picks the ledger entitlement with the highest tier priority.
func (uc *PurchaseUseCase) highestHeld(held []*model.Entitlement) *model.Entitlement {
	var best *model.Entitlement
	for _, e := range held {
		if best == nil || uc.catalog.PriorityOf(e.TierName) > uc.catalog.PriorityOf(best.TierName) {
			best = e
		}
	}
	return best
}

func kindForPath(p model.PurchasePath) model.NotificationKind {
	switch p {
	case model.PathPartial:
		return model.NotifyExtended
	case model.PathUpgrade:
		return model.NotifyUpgraded
	default:
		return model.NotifyPurchased
	}
}
