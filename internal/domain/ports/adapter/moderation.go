package adapter

import "context"

// Moderation covers the platform-side collaborators adjacent to
// entitlement possession.
type Moderation interface {
	// LiftRestrictions clears temporary restriction markers from the
	// account. A no-op when none are present.
	LiftRestrictions(ctx context.Context, accountID int64) error
	// StripDelegated removes delegated privileges tied to possession of
	// the tier (for example moderator-style permissions).
	StripDelegated(ctx context.Context, accountID int64, tier string) error
}
