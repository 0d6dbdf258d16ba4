package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// Ensure entitlementRepo implements repository.EntitlementRepository
var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) *entitlementRepo {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (
  account_id, tier_name, expires_at, external_assignment_id, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (account_id, tier_name) DO UPDATE SET
  expires_at=$3, external_assignment_id=$4, updated_at=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, e.AccountID, e.TierName, e.ExpiresAt, e.ExternalAssignmentID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *entitlementRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.Entitlement, error) {
	const q = `
SELECT account_id, tier_name, expires_at, external_assignment_id, created_at, updated_at
  FROM entitlements
 WHERE account_id=$1
 ORDER BY tier_name;`
	out, err := r.queryMany(ctx, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (r *entitlementRepo) FindByAccountAndTier(ctx context.Context, tx repository.Tx, accountID int64, tier string) (*model.Entitlement, error) {
	const q = `
SELECT account_id, tier_name, expires_at, external_assignment_id, created_at, updated_at
  FROM entitlements
 WHERE account_id=$1 AND tier_name=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, tier)
	if err != nil {
		return nil, err
	}
	e, err := scanEntitlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *entitlementRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time, tiers []string) ([]*model.Entitlement, error) {
	const q = `
SELECT account_id, tier_name, expires_at, external_assignment_id, created_at, updated_at
  FROM entitlements
 WHERE expires_at <= $1
   AND (cardinality($2::text[]) = 0 OR tier_name = ANY($2))
 ORDER BY account_id, tier_name;`
	if tiers == nil {
		tiers = []string{}
	}
	return r.queryMany(ctx, tx, q, now, tiers)
}

func (r *entitlementRepo) Delete(ctx context.Context, tx repository.Tx, accountID int64, tier string) (int64, error) {
	const q = `DELETE FROM entitlements WHERE account_id=$1 AND tier_name=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, accountID, tier)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return 0, err
		default:
			return 0, domain.ErrOperationFailed
		}
	}
	return tag.RowsAffected(), nil
}

func (r *entitlementRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT tier_name, COUNT(*) FROM entitlements GROUP BY tier_name;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tier string
		var c int
		if err := rows.Scan(&tier, &c); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[tier] = c
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *entitlementRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...interface{}) ([]*model.Entitlement, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanEntitlement(row pgx.Row) (*model.Entitlement, error) {
	e := &model.Entitlement{}
	if err := row.Scan(&e.AccountID, &e.TierName, &e.ExpiresAt, &e.ExternalAssignmentID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}
