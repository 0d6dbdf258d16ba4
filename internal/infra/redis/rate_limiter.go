package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter. The platform adapter consults it
// before every outbound API call so one noisy sweep cannot exhaust the
// bot-wide quota.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// PlatformCallKey buckets outbound platform API calls by method family.
func PlatformCallKey(method string) string {
	return fmt.Sprintf("rate_limit:platform:%s", method)
}

// AccountActionKey buckets account-initiated operations.
func AccountActionKey(accountID int64, action string) string {
	return fmt.Sprintf("rate_limit:%d:%s", accountID, action)
}
