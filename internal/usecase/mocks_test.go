//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-tier-entitlements/internal/domain"
	"telegram-tier-entitlements/internal/domain/model"
	"telegram-tier-entitlements/internal/domain/ports/adapter"
	"telegram-tier-entitlements/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// MockEntitlementRepo is an in-memory ledger with overridable behavior.
type MockEntitlementRepo struct {
	mu    sync.Mutex
	store map[string]*model.Entitlement // key: accountID/tier

	SaveFunc        func(ctx context.Context, tx repository.Tx, e *model.Entitlement) error
	DeleteFunc      func(ctx context.Context, tx repository.Tx, accountID int64, tier string) (int64, error)
	FindExpiredFunc func(ctx context.Context, tx repository.Tx, now time.Time, tiers []string) ([]*model.Entitlement, error)
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func NewMockEntitlementRepo() *MockEntitlementRepo {
	return &MockEntitlementRepo{store: make(map[string]*model.Entitlement)}
}

func entKey(accountID int64, tier string) string { return fmt.Sprintf("%d/%s", accountID, tier) }

func (m *MockEntitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.store[entKey(e.AccountID, e.TierName)] = &cp
	return nil
}

func (m *MockEntitlementRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Entitlement
	for _, e := range m.store {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

func (m *MockEntitlementRepo) FindByAccountAndTier(ctx context.Context, tx repository.Tx, accountID int64, tier string) (*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[entKey(accountID, tier)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEntitlementRepo) FindExpired(ctx context.Context, tx repository.Tx, now time.Time, tiers []string) ([]*model.Entitlement, error) {
	if m.FindExpiredFunc != nil {
		return m.FindExpiredFunc(ctx, tx, now, tiers)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := map[string]bool{}
	for _, t := range tiers {
		allowed[t] = true
	}
	var out []*model.Entitlement
	for _, e := range m.store {
		if !e.ExpiresAt.After(now) && (len(tiers) == 0 || allowed[e.TierName]) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockEntitlementRepo) Delete(ctx context.Context, tx repository.Tx, accountID int64, tier string) (int64, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, accountID, tier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[entKey(accountID, tier)]; !ok {
		return 0, nil
	}
	delete(m.store, entKey(accountID, tier))
	return 1, nil
}

func (m *MockEntitlementRepo) CountByTier(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, e := range m.store {
		out[e.TierName]++
	}
	return out, nil
}

// Has reports whether the ledger currently holds (account, tier).
func (m *MockEntitlementRepo) Has(accountID int64, tier string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[entKey(accountID, tier)]
	return ok
}

// Get returns a copy of the stored row, or nil.
func (m *MockEntitlementRepo) Get(accountID int64, tier string) *model.Entitlement {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[entKey(accountID, tier)]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Len returns the number of ledger rows.
func (m *MockEntitlementRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// =============================
// Adapters
// =============================

// MockAuthority is a configurable in-memory platform: grants is the set of
// (account, tier) memberships, accounts the set of existing accounts.
type MockAuthority struct {
	mu       sync.Mutex
	grants   map[string]bool
	accounts map[int64]bool
	catalog  *model.Catalog

	RevokeCalls int // number of RevokeBatch invocations

	GrantFunc       func(ctx context.Context, accountID int64, tier string) (string, error)
	RevokeBatchFunc func(ctx context.Context, accountID int64, tiers []string) ([]adapter.RevokeOutcome, error)
}

var _ adapter.RoleAuthority = (*MockAuthority)(nil)

func NewMockAuthority(catalog *model.Catalog) *MockAuthority {
	return &MockAuthority{
		grants:   make(map[string]bool),
		accounts: make(map[int64]bool),
		catalog:  catalog,
	}
}

func (m *MockAuthority) AddAccount(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = true
}

func (m *MockAuthority) SetGrant(accountID int64, tier string, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = true
	if held {
		m.grants[entKey(accountID, tier)] = true
	} else {
		delete(m.grants, entKey(accountID, tier))
	}
}

func (m *MockAuthority) Grant(ctx context.Context, accountID int64, tier string) (string, error) {
	if m.GrantFunc != nil {
		return m.GrantFunc(ctx, accountID, tier)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accounts[accountID] {
		return "", domain.ErrAccountNotFound
	}
	m.grants[entKey(accountID, tier)] = true
	return fmt.Sprintf("grant-%d-%s", accountID, tier), nil
}

func (m *MockAuthority) RevokeBatch(ctx context.Context, accountID int64, tiers []string) ([]adapter.RevokeOutcome, error) {
	m.mu.Lock()
	m.RevokeCalls++
	m.mu.Unlock()
	if m.RevokeBatchFunc != nil {
		return m.RevokeBatchFunc(ctx, accountID, tiers)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adapter.RevokeOutcome, 0, len(tiers))
	for _, t := range tiers {
		o := adapter.RevokeOutcome{Tier: t}
		if !m.grants[entKey(accountID, t)] {
			o.AlreadyAbsent = true
		}
		delete(m.grants, entKey(accountID, t))
		out = append(out, o)
	}
	return out, nil
}

func (m *MockAuthority) HasGrant(ctx context.Context, accountID int64, tier string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[entKey(accountID, tier)], nil
}

func (m *MockAuthority) ResolveAccount(ctx context.Context, accountID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[accountID], nil
}

func (m *MockAuthority) ResolveEffectiveTier(ctx context.Context, accountID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, n := range m.catalog.Names() {
		if m.grants[entKey(accountID, n)] {
			names = append(names, n)
		}
	}
	t, ok := m.catalog.Highest(names)
	if !ok {
		return "", false, nil
	}
	return t.Name, true, nil
}

// MockWallet records balance mutations per account.
type MockWallet struct {
	mu       sync.Mutex
	Balances map[int64]int64
	Credits  []int64
	Debits   []int64

	DebitFunc func(ctx context.Context, accountID int64, amount int64) error
}

var _ adapter.Wallet = (*MockWallet)(nil)

func NewMockWallet() *MockWallet { return &MockWallet{Balances: make(map[int64]int64)} }

func (m *MockWallet) Credit(ctx context.Context, accountID int64, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Balances[accountID] += amount
	m.Credits = append(m.Credits, amount)
	return nil
}

func (m *MockWallet) Debit(ctx context.Context, accountID int64, amount int64) error {
	if m.DebitFunc != nil {
		return m.DebitFunc(ctx, accountID, amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances[accountID] < amount {
		return domain.ErrInsufficientFunds
	}
	m.Balances[accountID] -= amount
	m.Debits = append(m.Debits, amount)
	return nil
}

func (m *MockWallet) Balance(ctx context.Context, accountID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances[accountID], nil
}

// MockModeration counts collaborator calls.
type MockModeration struct {
	mu       sync.Mutex
	Lifted   []int64
	Stripped []string
	LiftErr  error
	StripErr error
}

var _ adapter.Moderation = (*MockModeration)(nil)

func (m *MockModeration) LiftRestrictions(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LiftErr != nil {
		return m.LiftErr
	}
	m.Lifted = append(m.Lifted, accountID)
	return nil
}

func (m *MockModeration) StripDelegated(ctx context.Context, accountID int64, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StripErr != nil {
		return m.StripErr
	}
	m.Stripped = append(m.Stripped, fmt.Sprintf("%d/%s", accountID, tier))
	return nil
}

// MockNotifier captures fire-and-forget events.
type MockNotifier struct {
	mu     sync.Mutex
	Events []model.Notification
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, n model.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, n)
}

func (m *MockNotifier) Kinds() []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Kind)
	}
	return out
}

// =============================
// Infra helpers for tests
// =============================

// MockTxManager runs callbacks immediately with NoTX unless overridden.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

func (m *MockTxManager) WithAccountLock(ctx context.Context, accountID int64, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, repository.NoTX)
}

// MockCooldowns is an in-memory cooldown ledger.
type MockCooldowns struct {
	mu   sync.Mutex
	held map[string]time.Time
}

var _ repository.CooldownLedger = (*MockCooldowns)(nil)

func NewMockCooldowns() *MockCooldowns { return &MockCooldowns{held: make(map[string]time.Time)} }

func (m *MockCooldowns) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.held[key]; ok && until.After(time.Now()) {
		return false, nil
	}
	m.held[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockCooldowns) Remaining(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if until, ok := m.held[key]; ok {
		if d := time.Until(until); d > 0 {
			return d, nil
		}
	}
	return 0, nil
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// testCatalog builds the two-tier catalog most tests use.
func testCatalog() *model.Catalog {
	c, err := model.NewCatalog([]model.TierDefinition{
		{Name: "silver", Price: 100, Priority: 1, DurationDays: 30, ChatID: -100},
		{Name: "gold", Price: 500, Priority: 2, DurationDays: 30, ChatID: -200},
	})
	if err != nil {
		panic(err)
	}
	return c
}
