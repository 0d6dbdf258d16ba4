package model

import (
	"sort"

	"telegram-tier-entitlements/internal/domain"
)

// TierDefinition describes one purchasable tier: a priced, priority-ordered
// membership level backed by a private platform chat.
type TierDefinition struct {
	Name         string
	Price        int64 // internal currency units for one base duration
	Priority     int   // strictly increasing with tier value
	DurationDays int
	ChatID       int64 // telegram chat holding members of this tier
}

// YearlyDurationDays is the duration of a yearly purchase. It is a distinct
// constant, not derived from any tier's base duration.
const YearlyDurationDays = 365

// Catalog holds the tier list plus tables derived from it once at startup.
// It is immutable after construction; changing the tier list requires a
// process restart.
type Catalog struct {
	byName     map[string]TierDefinition
	byPriority []TierDefinition // ascending priority
	// partial[name][amount] = days added by a top-up of that amount
	partial map[string]map[int64]int
	// upgrade[fromName] = price of moving to the immediate next-higher tier
	upgrade map[string]int64
}

// NewCatalog validates the tier list and builds the derived tables.
func NewCatalog(tiers []TierDefinition) (*Catalog, error) {
	if len(tiers) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	c := &Catalog{
		byName:  make(map[string]TierDefinition, len(tiers)),
		partial: make(map[string]map[int64]int, len(tiers)),
		upgrade: make(map[string]int64),
	}
	for _, t := range tiers {
		if t.Name == "" || t.Price <= 0 || t.DurationDays <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, domain.ErrAlreadyExists
		}
		c.byName[t.Name] = t
		c.byPriority = append(c.byPriority, t)
	}
	sort.Slice(c.byPriority, func(i, j int) bool {
		return c.byPriority[i].Priority < c.byPriority[j].Priority
	})
	for i := 1; i < len(c.byPriority); i++ {
		if c.byPriority[i].Priority == c.byPriority[i-1].Priority {
			return nil, domain.ErrInvalidArgument
		}
	}

	// Supported top-up price points: quarter, half and three-quarter price
	// buy the matching fraction of the base duration.
	for _, t := range c.byPriority {
		points := map[int64]int{
			t.Price / 4:     t.DurationDays / 4,
			t.Price / 2:     t.DurationDays / 2,
			3 * t.Price / 4: 3 * t.DurationDays / 4,
		}
		m := make(map[int64]int, len(points))
		for amount, days := range points {
			if amount > 0 && days > 0 {
				m[amount] = days
			}
		}
		c.partial[t.Name] = m
	}

	// Upgrade cost between adjacent priorities is the price difference.
	for i := 0; i+1 < len(c.byPriority); i++ {
		cur, next := c.byPriority[i], c.byPriority[i+1]
		cost := next.Price - cur.Price
		if cost < 0 {
			cost = 0
		}
		c.upgrade[cur.Name] = cost
	}
	return c, nil
}

// Tier returns the definition for name; ok is false for unknown names.
func (c *Catalog) Tier(name string) (TierDefinition, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// PriceOf returns the tier price, 0 for unknown tiers.
func (c *Catalog) PriceOf(name string) int64 { return c.byName[name].Price }

// PriorityOf returns the tier priority, 0 for unknown tiers.
func (c *Catalog) PriorityOf(name string) int { return c.byName[name].Priority }

// DurationOf returns the tier base duration in days, 0 for unknown tiers.
func (c *Catalog) DurationOf(name string) int { return c.byName[name].DurationDays }

// PartialExtensionDays maps a top-up amount at a tier's price points to the
// number of days it buys. Returns 0 when the amount is not a supported
// price point or the tier is unknown.
func (c *Catalog) PartialExtensionDays(name string, amount int64) int {
	return c.partial[name][amount]
}

// UpgradeCost returns the cost of moving from tier `from` to tier `to`.
// Defined only when `to` is the immediate next-higher tier; 0 otherwise.
func (c *Catalog) UpgradeCost(from, to string) int64 {
	next, ok := c.NextAbove(from)
	if !ok || next.Name != to {
		return 0
	}
	return c.upgrade[from]
}

// NextAbove returns the tier at the next higher priority, if any.
func (c *Catalog) NextAbove(name string) (TierDefinition, bool) {
	cur, ok := c.byName[name]
	if !ok {
		return TierDefinition{}, false
	}
	for i, t := range c.byPriority {
		if t.Name == cur.Name {
			if i+1 < len(c.byPriority) {
				return c.byPriority[i+1], true
			}
			return TierDefinition{}, false
		}
	}
	return TierDefinition{}, false
}

// Names returns all tier names in ascending priority order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.byPriority))
	for _, t := range c.byPriority {
		out = append(out, t.Name)
	}
	return out
}

// Highest returns the highest-priority tier among names known to the
// catalog; ok is false when none are known.
func (c *Catalog) Highest(names []string) (TierDefinition, bool) {
	var best TierDefinition
	found := false
	for _, n := range names {
		t, ok := c.byName[n]
		if !ok {
			continue
		}
		if !found || t.Priority > best.Priority {
			best = t
			found = true
		}
	}
	return best, found
}
