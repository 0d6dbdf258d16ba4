package telegram

import (
	"context"
	"log"
	"sync"

	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
)

var _ adapter.RoleAuthority = (*NoopAuthority)(nil)
var _ adapter.Notifier = (*NoopAuthority)(nil)
var _ adapter.Moderation = (*NoopAuthority)(nil)

// NoopAuthority implements the platform ports in memory for local/dev
// runs. It logs instead of calling Telegram and treats every account as
// existing.
type NoopAuthority struct {
	catalog *model.Catalog

	mu     sync.Mutex
	grants map[int64]map[string]bool
}

func NewNoopAuthority(catalog *model.Catalog) *NoopAuthority {
	return &NoopAuthority{catalog: catalog, grants: make(map[int64]map[string]bool)}
}

func (n *NoopAuthority) Grant(ctx context.Context, accountID int64, tier string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.grants[accountID] == nil {
		n.grants[accountID] = make(map[string]bool)
	}
	n.grants[accountID][tier] = true
	log.Printf("[noop-authority] grant %s to %d", tier, accountID)
	return "noop-grant", nil
}

func (n *NoopAuthority) RevokeBatch(ctx context.Context, accountID int64, tiers []string) ([]adapter.RevokeOutcome, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]adapter.RevokeOutcome, 0, len(tiers))
	for _, tier := range tiers {
		o := adapter.RevokeOutcome{Tier: tier, AlreadyAbsent: !n.grants[accountID][tier]}
		delete(n.grants[accountID], tier)
		log.Printf("[noop-authority] revoke %s from %d", tier, accountID)
		out = append(out, o)
	}
	return out, nil
}

func (n *NoopAuthority) HasGrant(ctx context.Context, accountID int64, tier string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.grants[accountID][tier], nil
}

func (n *NoopAuthority) ResolveAccount(ctx context.Context, accountID int64) (bool, error) {
	return true, nil
}

func (n *NoopAuthority) ResolveEffectiveTier(ctx context.Context, accountID int64) (string, bool, error) {
	n.mu.Lock()
	var held []string
	for tier, ok := range n.grants[accountID] {
		if ok {
			held = append(held, tier)
		}
	}
	n.mu.Unlock()
	t, ok := n.catalog.Highest(held)
	if !ok {
		return "", false, nil
	}
	return t.Name, true, nil
}

func (n *NoopAuthority) Notify(ctx context.Context, event model.Notification) {
	log.Printf("[noop-authority] notify %d: %s %s", event.AccountID, event.Kind, event.TierName)
}

func (n *NoopAuthority) LiftRestrictions(ctx context.Context, accountID int64) error {
	log.Printf("[noop-authority] lift restrictions for %d", accountID)
	return nil
}

func (n *NoopAuthority) StripDelegated(ctx context.Context, accountID int64, tier string) error {
	log.Printf("[noop-authority] strip delegated %s from %d", tier, accountID)
	return nil
}
