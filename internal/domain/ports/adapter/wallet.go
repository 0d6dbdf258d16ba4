package adapter

import "context"

// Wallet is the virtual-currency collaborator. Credit and Debit are atomic
// single-row updates; the engine never assumes multi-step wallet sequences
// roll back for it and performs its own compensation instead.
type Wallet interface {
	Credit(ctx context.Context, accountID int64, amount int64) error
	// Debit fails with domain.ErrInsufficientFunds when the balance cannot
	// cover the amount; no partial deduction happens.
	Debit(ctx context.Context, accountID int64, amount int64) error
	Balance(ctx context.Context, accountID int64) (int64, error)
}
