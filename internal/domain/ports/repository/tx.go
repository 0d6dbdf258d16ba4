package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres); repositories must gracefully accept nil and fall
// back to their pool.
type Tx interface{}

// NoTX marks an explicitly non-transactional call.
var NoTX Tx

// TransactionManager executes a function within one atomic unit of work,
// passing the transaction handle through to repository calls. Per-account
// serialization is built on top of this: the callback takes an advisory
// lock on the account before touching its rows.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
	// WithAccountLock runs fn inside a transaction that holds an advisory
	// lock derived from the account id. Two concurrent operations on the
	// same account serialize on that lock; operations on different
	// accounts never block each other.
	WithAccountLock(ctx context.Context, accountID int64, fn func(ctx context.Context, tx Tx) error) error
}
