package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrNoRowsAffected     = errors.New("no rows affected")

	// Purchase / sale business conditions
	ErrUnknownTier       = errors.New("unknown tier")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnsupportedAmount = errors.New("amount matches no purchase path")
	ErrNotHeldExternally = errors.New("tier not held on the platform")
	ErrNotHeldInternally = errors.New("tier not present in the ledger")
	ErrOnCooldown        = errors.New("bonus is on cooldown")

	// External authority failure modes
	ErrAccountNotFound = errors.New("account not found on the platform")
	ErrForbidden       = errors.New("platform refused the operation")
	ErrRateLimited     = errors.New("platform rate limit hit")
)
