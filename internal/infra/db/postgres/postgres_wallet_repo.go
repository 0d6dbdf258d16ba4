package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/infra/metrics"
)

// Ensure walletRepo implements adapter.Wallet
var _ adapter.Wallet = (*walletRepo)(nil)

// walletRepo keeps one balance row per account. Mutations are single
// atomic statements, so wallet calls are safe both inside and outside an
// account-locked transaction.
type walletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *walletRepo {
	return &walletRepo{pool: pool}
}

func (r *walletRepo) Credit(ctx context.Context, accountID int64, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO wallets (account_id, balance, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (account_id) DO UPDATE SET
  balance = wallets.balance + $2, updated_at = NOW();`
	if _, err := r.pool.Exec(ctx, q, accountID, amount); err != nil {
		return domain.ErrOperationFailed
	}
	metrics.IncWalletMutation("credit")
	return nil
}

func (r *walletRepo) Debit(ctx context.Context, accountID int64, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	// The balance guard in the WHERE clause makes overdraft impossible
	// without an explicit row lock.
	const q = `
UPDATE wallets
   SET balance = balance - $2, updated_at = NOW()
 WHERE account_id = $1 AND balance >= $2;`
	tag, err := r.pool.Exec(ctx, q, accountID, amount)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}
	metrics.IncWalletMutation("debit")
	return nil
}

func (r *walletRepo) Balance(ctx context.Context, accountID int64) (int64, error) {
	const q = `SELECT balance FROM wallets WHERE account_id=$1;`
	var balance int64
	if err := r.pool.QueryRow(ctx, q, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil // no row yet means an empty wallet
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return balance, nil
}
