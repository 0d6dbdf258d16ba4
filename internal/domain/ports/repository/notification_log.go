package repository

import (
	"context"
	"time"

	"telegram-tier-entitlements/internal/domain/model"
)

// DeadLetter is a notification whose delivery failed, parked for operator
// replay.
type DeadLetter struct {
	ID        string // ULID
	Event     model.Notification
	Reason    string
	CreatedAt time.Time
}

// NotificationLogRepository persists undeliverable notifications. Writes
// here are best-effort and never roll back the mutation that produced the
// event.
type NotificationLogRepository interface {
	Save(ctx context.Context, tx Tx, d *DeadLetter) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*DeadLetter, error)
}
