//go:build !integration

package web

import (
	"context"
	"time"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// ---- service stubs ----

type stubPurchase struct {
	Outcome *model.PurchaseOutcome
	Err     error
	Calls   []purchaseCall
}

type purchaseCall struct {
	AccountID int64
	Tier      string
	Amount    int64
	Origin    model.PaymentOrigin
	Yearly    bool
}

func (s *stubPurchase) Purchase(_ context.Context, accountID int64, tier string, amount int64, origin model.PaymentOrigin, yearly bool) (*model.PurchaseOutcome, error) {
	s.Calls = append(s.Calls, purchaseCall{accountID, tier, amount, origin, yearly})
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Outcome, nil
}

type stubSale struct {
	Refund int64
	Err    error
}

func (s *stubSale) Sell(context.Context, int64, string) (int64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Refund, nil
}

type stubSweep struct {
	Stats model.SweepStats
	Err   error
	Tiers []string
}

func (s *stubSweep) Sweep(_ context.Context, tiers []string) (model.SweepStats, error) {
	s.Tiers = tiers
	return s.Stats, s.Err
}

// ---- port stubs ----
// Unused interface methods are inherited from the embedded nil interface and
// panic if a handler unexpectedly reaches them.

type stubEnts struct {
	repository.EntitlementRepository
	Rows   []*model.Entitlement
	Counts map[string]int
	Err    error
}

func (s *stubEnts) FindByAccount(context.Context, repository.Tx, int64) ([]*model.Entitlement, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return s.Rows, nil
}

func (s *stubEnts) CountByTier(context.Context, repository.Tx) (map[string]int, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Counts, nil
}

type stubWallet struct {
	Bal int64
	Err error
}

func (s *stubWallet) Credit(context.Context, int64, int64) error { return nil }
func (s *stubWallet) Debit(context.Context, int64, int64) error  { return nil }
func (s *stubWallet) Balance(context.Context, int64) (int64, error) {
	return s.Bal, s.Err
}

type stubLetters struct {
	Recent []*repository.DeadLetter
	Limit  int
}

func (s *stubLetters) Save(context.Context, repository.Tx, *repository.DeadLetter) error {
	return nil
}

func (s *stubLetters) ListRecent(_ context.Context, _ repository.Tx, limit int) ([]*repository.DeadLetter, error) {
	s.Limit = limit
	if limit < len(s.Recent) {
		return s.Recent[:limit], nil
	}
	return s.Recent, nil
}

func webTestCatalog() *model.Catalog {
	c, err := model.NewCatalog([]model.TierDefinition{
		{Name: "silver", Price: 100, Priority: 1, DurationDays: 30, ChatID: -100},
		{Name: "gold", Price: 500, Priority: 2, DurationDays: 30, ChatID: -200},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func activeEntitlement(accountID int64, tier string, daysLeft int) *model.Entitlement {
	now := time.Now().UTC()
	handle := "link-" + tier
	return &model.Entitlement{
		AccountID:            accountID,
		TierName:             tier,
		ExpiresAt:            now.Add(time.Duration(daysLeft) * 24 * time.Hour),
		ExternalAssignmentID: &handle,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}
