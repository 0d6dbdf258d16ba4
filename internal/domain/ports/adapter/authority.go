package adapter

import "context"

// RevokeOutcome is the per-tier result of a batched revocation. Partial
// success within a batch is reported tier by tier, never collapsed into an
// all-or-nothing boolean.
type RevokeOutcome struct {
	Tier string
	// AlreadyAbsent means the platform had no grant to revoke (drift).
	AlreadyAbsent bool
	Err           error
}

// RoleAuthority is the boundary to the platform's own tier-possession
// state. The ledger owns expiry; the authority owns current possession.
// All calls are expected to carry bounded deadlines via ctx; a timeout is a
// failure, never a success.
type RoleAuthority interface {
	// Grant adds the account to the tier and returns an opaque assignment
	// handle. Fails with domain.ErrAccountNotFound, domain.ErrForbidden or
	// domain.ErrRateLimited.
	Grant(ctx context.Context, accountID int64, tier string) (string, error)
	// RevokeBatch removes all listed tiers from the account in one pass,
	// reporting each tier individually.
	RevokeBatch(ctx context.Context, accountID int64, tiers []string) ([]RevokeOutcome, error)
	HasGrant(ctx context.Context, accountID int64, tier string) (bool, error)
	// ResolveAccount reports whether the account still exists on the
	// platform.
	ResolveAccount(ctx context.Context, accountID int64) (bool, error)
	// ResolveEffectiveTier re-resolves the account's highest-priority held
	// tier against the platform. Never served from a cache: effective-tier
	// decisions must see the platform's current state.
	ResolveEffectiveTier(ctx context.Context, accountID int64) (tier string, held bool, err error)
}
