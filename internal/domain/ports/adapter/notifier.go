package adapter

import (
	"context"

	"telegram-tier-entitlements/internal/domain/model"
)

// Notifier delivers lifecycle events to accounts. Fire-and-forget: the
// implementation swallows delivery failures into its own dead-letter
// channel and never surfaces them to the engine.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}
