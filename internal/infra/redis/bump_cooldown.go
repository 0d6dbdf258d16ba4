package redis

import (
	"context"
	"time"

	"telegram-tier-entitlements/internal/domain/ports/repository"
)

var _ repository.CooldownLedger = (*CooldownLedger)(nil)

// CooldownLedger implements the claim-once-per-window primitive on SET NX.
// The key's TTL is the remaining cooldown; losing the key early (a Redis
// flush) fails open, which for a promotional bonus is acceptable.
type CooldownLedger struct {
	client RedisClient
}

func NewCooldownLedger(client RedisClient) *CooldownLedger {
	return &CooldownLedger{client: client}
}

func (c *CooldownLedger) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, "cooldown:"+key, 1, ttl)
}

func (c *CooldownLedger) Remaining(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, "cooldown:"+key)
	if err != nil {
		return 0, err
	}
	if d < 0 { // -1 no expiry, -2 no key
		return 0, nil
	}
	return d, nil
}
