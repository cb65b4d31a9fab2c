package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"custody/internal/models"
	"custody/internal/money"

	"github.com/google/uuid"
)

type memoryData struct {
	wallets        map[string]models.Wallet
	transactions   map[string]models.Transaction
	txOrder        []string
	paymentMethods map[string]models.PaymentMethod
	verifications  map[string]models.KYCVerification
}

func newMemoryData() *memoryData {
	return &memoryData{
		wallets:        make(map[string]models.Wallet),
		transactions:   make(map[string]models.Transaction),
		paymentMethods: make(map[string]models.PaymentMethod),
		verifications:  make(map[string]models.KYCVerification),
	}
}

func (d *memoryData) clone() *memoryData {
	out := newMemoryData()
	for k, v := range d.wallets {
		out.wallets[k] = v
	}
	for k, v := range d.transactions {
		out.transactions[k] = copyTransaction(v)
	}
	out.txOrder = append([]string(nil), d.txOrder...)
	for k, v := range d.paymentMethods {
		out.paymentMethods[k] = v
	}
	for k, v := range d.verifications {
		out.verifications[k] = copyVerification(v)
	}
	return out
}

type memoryShared struct {
	// writeMu serializes units of work, mu guards the data pointer.
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *memoryData
}

// memoryStore is a Store kept entirely in process memory. Units of work run
// one at a time against a staged copy that replaces the committed data only
// when the callback succeeds, so a failed callback leaves no trace.
type memoryStore struct {
	shared *memoryShared
	staged *memoryData
}

// NewMemoryStore creates a concurrency-safe in-memory Store useful for unit
// tests and the sandbox server mode.
func NewMemoryStore() Store {
	return &memoryStore{shared: &memoryShared{data: newMemoryData()}}
}

func (s *memoryStore) Wallets() WalletRepository { return memoryWallets{s} }
func (s *memoryStore) Transactions() TransactionRepository { return memoryTransactions{s} }
func (s *memoryStore) PaymentMethods() PaymentMethodRepository { return memoryPaymentMethods{s} }
func (s *memoryStore) Verifications() VerificationRepository { return memoryVerifications{s} }

func (s *memoryStore) ExecuteInTransaction(ctx context.Context, fn func(Store) error) error {
	if s.staged != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.shared.writeMu.Lock()
	defer s.shared.writeMu.Unlock()

	s.shared.mu.RLock()
	staged := s.shared.data.clone()
	s.shared.mu.RUnlock()

	if err := fn(&memoryStore{shared: s.shared, staged: staged}); err != nil {
		return err
	}

	s.shared.mu.Lock()
	s.shared.data = staged
	s.shared.mu.Unlock()
	return nil
}

func (s *memoryStore) read(fn func(*memoryData) error) error {
	if s.staged != nil {
		return fn(s.staged)
	}
	s.shared.mu.RLock()
	defer s.shared.mu.RUnlock()
	return fn(s.shared.data)
}

func (s *memoryStore) write(ctx context.Context, fn func(*memoryData) error) error {
	if s.staged != nil {
		return fn(s.staged)
	}
	return s.ExecuteInTransaction(ctx, func(tx Store) error {
		return fn(tx.(*memoryStore).staged)
	})
}

type memoryWallets struct{ s *memoryStore }

func (r memoryWallets) Create(ctx context.Context, wallet *models.Wallet) error {
	if wallet.Balance < 0 {
		return ErrNegativeBalance
	}
	return r.s.write(ctx, func(d *memoryData) error {
		for _, w := range d.wallets {
			if w.AccountID == wallet.AccountID {
				return ErrDuplicate
			}
		}
		if wallet.ID == "" {
			wallet.ID = uuid.NewString()
		}
		if _, ok := d.wallets[wallet.ID]; ok {
			return ErrDuplicate
		}
		now := time.Now().UTC()
		if wallet.CreatedAt.IsZero() {
			wallet.CreatedAt = now
		}
		wallet.UpdatedAt = now
		d.wallets[wallet.ID] = *wallet
		return nil
	})
}

func (r memoryWallets) GetByID(_ context.Context, id string) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.s.read(func(d *memoryData) error {
		w, ok := d.wallets[id]
		if !ok {
			return ErrWalletNotFound
		}
		out = &w
		return nil
	})
	return out, err
}

func (r memoryWallets) GetByAccountID(_ context.Context, accountID string) (*models.Wallet, error) {
	var out *models.Wallet
	err := r.s.read(func(d *memoryData) error {
		for _, w := range d.wallets {
			if w.AccountID == accountID {
				found := w
				out = &found
				return nil
			}
		}
		return ErrWalletNotFound
	})
	return out, err
}

func (r memoryWallets) LockByIDs(_ context.Context, ids ...string) (map[string]*models.Wallet, error) {
	locked := make(map[string]*models.Wallet, len(ids))
	err := r.s.read(func(d *memoryData) error {
		for _, id := range sortedUnique(ids) {
			w, ok := d.wallets[id]
			if !ok {
				return ErrWalletNotFound
			}
			locked[id] = &w
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

func (r memoryWallets) UpdateBalance(ctx context.Context, wallet *models.Wallet, newBalance money.Amount) error {
	if newBalance < 0 {
		return ErrNegativeBalance
	}
	now := time.Now().UTC()
	err := r.s.write(ctx, func(d *memoryData) error {
		stored, ok := d.wallets[wallet.ID]
		if !ok {
			return ErrConflict
		}
		if stored.Version != wallet.Version {
			return ErrConflict
		}
		stored.Balance = newBalance
		stored.Version++
		stored.UpdatedAt = now
		d.wallets[wallet.ID] = stored
		return nil
	})
	if err != nil {
		return err
	}
	wallet.Balance = newBalance
	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

func (r memoryWallets) TotalBalance(_ context.Context) (money.Amount, error) {
	var total money.Amount
	err := r.s.read(func(d *memoryData) error {
		for _, w := range d.wallets {
			total += w.Balance
		}
		return nil
	})
	return total, err
}

type memoryTransactions struct{ s *memoryStore }

func (r memoryTransactions) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.Amount <= 0 {
		return ErrCheckViolation
	}
	return r.s.write(ctx, func(d *memoryData) error {
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}
		if _, ok := d.transactions[tx.ID]; ok {
			return ErrDuplicate
		}
		if tx.ExternalRef != nil {
			for _, existing := range d.transactions {
				if existing.ExternalRef != nil && *existing.ExternalRef == *tx.ExternalRef {
					return ErrDuplicate
				}
			}
		}
		now := time.Now().UTC()
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		tx.UpdatedAt = now
		if tx.Status == "" {
			tx.Status = models.TransactionStatusPending
		}
		d.transactions[tx.ID] = copyTransaction(*tx)
		d.txOrder = append(d.txOrder, tx.ID)
		return nil
	})
}

func (r memoryTransactions) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.s.read(func(d *memoryData) error {
		tx, ok := d.transactions[id]
		if !ok {
			return ErrTransactionNotFound
		}
		c := copyTransaction(tx)
		out = &c
		return nil
	})
	return out, err
}

func (r memoryTransactions) GetByExternalRef(_ context.Context, ref string) (*models.Transaction, error) {
	var out *models.Transaction
	err := r.s.read(func(d *memoryData) error {
		for _, tx := range d.transactions {
			if tx.ExternalRef != nil && *tx.ExternalRef == ref {
				c := copyTransaction(tx)
				out = &c
				return nil
			}
		}
		return ErrTransactionNotFound
	})
	return out, err
}

func (r memoryTransactions) GetByExternalRefForUpdate(ctx context.Context, ref string) (*models.Transaction, error) {
	return r.GetByExternalRef(ctx, ref)
}

func (r memoryTransactions) UpdateStatus(ctx context.Context, id, from, to string, metadata models.JSON) error {
	return r.s.write(ctx, func(d *memoryData) error {
		tx, ok := d.transactions[id]
		if !ok {
			return ErrTransactionNotFound
		}
		if tx.Status != from {
			return ErrConflict
		}
		tx.Status = to
		if len(metadata) > 0 {
			if tx.Metadata == nil {
				tx.Metadata = models.JSON{}
			}
			for k, v := range metadata {
				tx.Metadata[k] = v
			}
		}
		tx.UpdatedAt = time.Now().UTC()
		d.transactions[id] = tx
		return nil
	})
}

func (r memoryTransactions) ListByWallet(_ context.Context, walletID string, limit, offset int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := r.s.read(func(d *memoryData) error {
		skipped := 0
		for i := len(d.txOrder) - 1; i >= 0; i-- {
			tx := d.transactions[d.txOrder[i]]
			if !tx.Touches(walletID) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			c := copyTransaction(tx)
			out = append(out, &c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

type memoryPaymentMethods struct{ s *memoryStore }

func (r memoryPaymentMethods) Create(ctx context.Context, pm *models.PaymentMethod) error {
	return r.s.write(ctx, func(d *memoryData) error {
		for _, existing := range d.paymentMethods {
			if existing.ExternalID == pm.ExternalID {
				return ErrDuplicate
			}
		}
		if pm.ID == "" {
			pm.ID = uuid.NewString()
		}
		if pm.CreatedAt.IsZero() {
			pm.CreatedAt = time.Now().UTC()
		}
		d.paymentMethods[pm.ID] = *pm
		return nil
	})
}

func (r memoryPaymentMethods) GetByExternalID(_ context.Context, externalID string) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := r.s.read(func(d *memoryData) error {
		for _, pm := range d.paymentMethods {
			if pm.ExternalID == externalID {
				found := pm
				out = &found
				return nil
			}
		}
		return ErrPaymentMethodNotFound
	})
	return out, err
}

func (r memoryPaymentMethods) ListByAccountID(_ context.Context, accountID string) ([]*models.PaymentMethod, error) {
	var out []*models.PaymentMethod
	err := r.s.read(func(d *memoryData) error {
		for _, pm := range d.paymentMethods {
			if pm.AccountID == accountID {
				found := pm
				out = append(out, &found)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r memoryPaymentMethods) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func(d *memoryData) error {
		if _, ok := d.paymentMethods[id]; !ok {
			return ErrPaymentMethodNotFound
		}
		delete(d.paymentMethods, id)
		return nil
	})
}

type memoryVerifications struct{ s *memoryStore }

func (r memoryVerifications) Create(ctx context.Context, v *models.KYCVerification) error {
	return r.s.write(ctx, func(d *memoryData) error {
		for _, existing := range d.verifications {
			if existing.AccountID == v.AccountID {
				return ErrDuplicate
			}
		}
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if v.CreatedAt.IsZero() {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
		d.verifications[v.ID] = copyVerification(*v)
		return nil
	})
}

func (r memoryVerifications) GetByAccountID(_ context.Context, accountID string) (*models.KYCVerification, error) {
	var out *models.KYCVerification
	err := r.s.read(func(d *memoryData) error {
		for _, v := range d.verifications {
			if v.AccountID == accountID {
				c := copyVerification(v)
				out = &c
				return nil
			}
		}
		return ErrVerificationNotFound
	})
	return out, err
}

// Units of work are serialized, so a plain read inside one is already exclusive.
func (r memoryVerifications) GetByAccountIDForUpdate(ctx context.Context, accountID string) (*models.KYCVerification, error) {
	return r.GetByAccountID(ctx, accountID)
}

func (r memoryVerifications) Update(ctx context.Context, v *models.KYCVerification) error {
	return r.s.write(ctx, func(d *memoryData) error {
		if _, ok := d.verifications[v.ID]; !ok {
			return ErrVerificationNotFound
		}
		v.UpdatedAt = time.Now().UTC()
		d.verifications[v.ID] = copyVerification(*v)
		return nil
	})
}

func copyTransaction(tx models.Transaction) models.Transaction {
	tx.SourceWalletID = copyString(tx.SourceWalletID)
	tx.DestWalletID = copyString(tx.DestWalletID)
	tx.ExternalRef = copyString(tx.ExternalRef)
	tx.Metadata = models.NewJSON(tx.Metadata)
	return tx
}

func copyVerification(v models.KYCVerification) models.KYCVerification {
	if v.Evidence != nil {
		evidence := make(models.EvidenceList, len(v.Evidence))
		for i, e := range v.Evidence {
			e.Content = append([]byte(nil), e.Content...)
			evidence[i] = e
		}
		v.Evidence = evidence
	}
	if v.ApprovedAt != nil {
		at := *v.ApprovedAt
		v.ApprovedAt = &at
	}
	v.RejectionReason = copyString(v.RejectionReason)
	return v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
