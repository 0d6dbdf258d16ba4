package repository

import (
	"context"
	"time"
)

// CooldownLedger tracks one-shot promotional claims. Acquire returns false
// without error when the key is still cooling down.
type CooldownLedger interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Remaining reports how long until the key can be acquired again;
	// zero when it is free.
	Remaining(ctx context.Context, key string) (time.Duration, error)
}
