package postgres

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

// notificationLogRepo parks undeliverable notifications. ULID ids keep the
// table naturally ordered by creation time.
type notificationLogRepo struct {
	pool    *pgxpool.Pool
	entropy *ulid.MonotonicEntropy
}

func NewNotificationLogRepo(pool *pgxpool.Pool) repository.NotificationLogRepository {
	return &notificationLogRepo{
		pool:    pool,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, d *repository.DeadLetter) error {
	if d.ID == "" {
		d.ID = ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO notification_deadletters (id, account_id, tier_name, kind, amount, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.Event.AccountID, d.Event.TierName, string(d.Event.Kind), d.Event.Amount, d.Reason, d.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *notificationLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*repository.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, account_id, tier_name, kind, amount, reason, created_at
  FROM notification_deadletters
 ORDER BY id DESC
 LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*repository.DeadLetter
	for rows.Next() {
		d := &repository.DeadLetter{}
		var kind string
		if err := rows.Scan(&d.ID, &d.Event.AccountID, &d.Event.TierName, &kind, &d.Event.Amount, &d.Reason, &d.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		d.Event.Kind = model.NotificationKind(kind)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
