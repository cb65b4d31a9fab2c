package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"custody/internal/models"
	"custody/internal/money"
	"custody/internal/repositories"
	"custody/internal/services/gateway"
	"custody/internal/services/kyc"
	"custody/internal/services/payment_method"
	"custody/internal/services/transaction"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordedEvent struct {
	Name      string
	AccountID string
	Payload   map[string]interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event, accountID string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Name: event, AccountID: accountID, Payload: payload})
}

func (n *recordingNotifier) names(accountID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var names []string
	for _, e := range n.events {
		if e.AccountID == accountID {
			names = append(names, e.Name)
		}
	}
	return names
}

type fixture struct {
	store    repositories.Store
	sandbox  *gateway.Sandbox
	identity kyc.Service
	methods  payment_method.Service
	notifier *recordingNotifier
	ledger   Service
}

type fixtureOption func(*Dependencies, *Config)

func withFaults(f *faults) fixtureOption {
	return func(d *Dependencies, _ *Config) {
		d.Store = &faultyStore{Store: d.Store, faults: f}
		d.Journal = transaction.NewService(d.Store)
	}
}

func withGatewayTimeout(timeout time.Duration) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Gateway = gateway.WithTimeout(d.Gateway, timeout) }
}

func withIdentity(gate IdentityGate) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Identity = gate }
}

func withCache(c StatusCache) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Cache = c }
}

func withLock(l SettlementLocker) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Lock = l }
}

func withMetrics(m MetricsCollector) fixtureOption {
	return func(d *Dependencies, _ *Config) { d.Metrics = m }
}

func withRetries(n int) fixtureOption {
	return func(_ *Dependencies, c *Config) { c.MaxRetries = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := repositories.NewMemoryStore()
	sandbox := gateway.NewSandbox()
	logger := zaptest.NewLogger(t)
	notifier := &recordingNotifier{}
	identity := kyc.NewService(store, notifier, kyc.Config{}, logger)
	methods := payment_method.NewService(store, sandbox, notifier, logger)

	deps := Dependencies{
		Store:    store,
		Journal:  transaction.NewService(store),
		Identity: identity,
		Methods:  methods,
		Gateway:  sandbox,
		Notifier: notifier,
		Logger:   logger,
	}
	config := Config{Currency: "USD", RetryBackoff: time.Millisecond}
	for _, opt := range opts {
		opt(&deps, &config)
	}

	return &fixture{
		store:    store,
		sandbox:  sandbox,
		identity: identity,
		methods:  methods,
		notifier: notifier,
		ledger:   NewService(deps, config),
	}
}

func (f *fixture) approve(t *testing.T, accountID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.identity.Submit(ctx, accountID)
	require.NoError(t, err)
	_, err = f.identity.SetStatus(ctx, accountID, models.KYCStatusApproved, nil)
	require.NoError(t, err)
}

// openWallet approves accountID, creates its wallet and registers
// instrument when one is given.
func (f *fixture) openWallet(t *testing.T, accountID string, initial money.Amount, instrument string) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	f.approve(t, accountID)
	w, err := f.ledger.CreateWallet(ctx, accountID, accountID+"@example.com", initial)
	require.NoError(t, err)
	if instrument != "" {
		_, err = f.ledger.AddPaymentMethod(ctx, accountID, instrument)
		require.NoError(t, err)
	}
	return w
}

func (f *fixture) balance(t *testing.T, accountID string) money.Amount {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return b
}

func (f *fixture) total(t *testing.T) money.Amount {
	t.Helper()
	total, err := f.store.Wallets().TotalBalance(context.Background())
	require.NoError(t, err)
	return total
}

// faults injects storage failures into a wrapped Store.
type faults struct {
	mu              sync.Mutex
	updateConflicts int
	updates         int
	createErr       error

	// failUpdate is the 1-based UpdateBalance call that returns updateErr.
	failUpdate int
	updateErr  error
}

func (f *faults) nextUpdate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil && f.updates == f.failUpdate {
		return f.updateErr
	}
	if f.updateConflicts > 0 {
		f.updateConflicts--
		return repositories.ErrConflict
	}
	return nil
}

type faultyStore struct {
	repositories.Store
	faults *faults
}

func (s *faultyStore) Wallets() repositories.WalletRepository {
	return faultyWallets{WalletRepository: s.Store.Wallets(), faults: s.faults}
}

func (s *faultyStore) Transactions() repositories.TransactionRepository {
	return faultyTransactions{TransactionRepository: s.Store.Transactions(), faults: s.faults}
}

func (s *faultyStore) ExecuteInTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	return s.Store.ExecuteInTransaction(ctx, func(tx repositories.Store) error {
		return fn(&faultyStore{Store: tx, faults: s.faults})
	})
}

type faultyWallets struct {
	repositories.WalletRepository
	faults *faults
}

func (w faultyWallets) UpdateBalance(ctx context.Context, wallet *models.Wallet, newBalance money.Amount) error {
	if err := w.faults.nextUpdate(); err != nil {
		return err
	}
	return w.WalletRepository.UpdateBalance(ctx, wallet, newBalance)
}

type faultyTransactions struct {
	repositories.TransactionRepository
	faults *faults
}

func (r faultyTransactions) Create(ctx context.Context, tx *models.Transaction) error {
	r.faults.mu.Lock()
	err := r.faults.createErr
	r.faults.mu.Unlock()
	if err != nil {
		return err
	}
	return r.TransactionRepository.Create(ctx, tx)
}
