// File: internal/usecase/bump_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// BumpUseCase credits the promotional bump bonus, at most once per
// cooldown window per account.
type BumpUseCase struct {
	cooldowns repository.CooldownLedger
	wallet    adapter.Wallet
	bonus     int64
	window    time.Duration
	log       *zerolog.Logger
}

func NewBumpUseCase(cooldowns repository.CooldownLedger, wallet adapter.Wallet, bonus int64, window time.Duration, logger *zerolog.Logger) *BumpUseCase {
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := logger.With().Str("component", "BumpUC").Logger()
	return &BumpUseCase{cooldowns: cooldowns, wallet: wallet, bonus: bonus, window: window, log: &l}
}

// Claim grants the bonus or reports domain.ErrOnCooldown.
func (uc *BumpUseCase) Claim(ctx context.Context, accountID int64) (int64, error) {
	if accountID <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	key := fmt.Sprintf("bump:%d", accountID)
	ok, err := uc.cooldowns.Acquire(ctx, key, uc.window)
	if err != nil {
		return 0, fmt.Errorf("cooldown: %w", err)
	}
	if !ok {
		return 0, domain.ErrOnCooldown
	}
	if err := uc.wallet.Credit(ctx, accountID, uc.bonus); err != nil {
		return 0, fmt.Errorf("credit bonus: %w", err)
	}
	uc.log.Debug().Int64("account_id", accountID).Int64("bonus", uc.bonus).Msg("bump bonus claimed")
	return uc.bonus, nil
}
