package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
)

type ctxtype string

const trKey ctxtype = "tx"

// Store is an in-process ledger with the same unit-of-work semantics as the
// PostgreSQL store: staged writes, all-or-nothing commit and an exclusive
// lock per account row.
type Store struct {
	mu          sync.RWMutex
	banks       map[int64]domain.Bank
	customers   map[int64]domain.Customer
	accounts    map[int64]domain.Account
	cards       map[int64]domain.Card
	atms        map[int64]domain.ATM
	operators   map[string]domain.Operator
	withdrawals []domain.Withdrawal

	nextWithdrawalID atomic.Int64

	locksMu      sync.Mutex
	accountLocks map[int64]*sync.Mutex

	// latency simulates storage I/O at each read inside a unit of work.
	latency time.Duration
}

type Option func(*Store)

// WithLatency makes every read inside a unit of work pause for d.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		banks:        make(map[int64]domain.Bank),
		customers:    make(map[int64]domain.Customer),
		accounts:     make(map[int64]domain.Account),
		cards:        make(map[int64]domain.Card),
		atms:         make(map[int64]domain.ATM),
		operators:    make(map[string]domain.Operator),
		accountLocks: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tx struct {
	locked      []*sync.Mutex
	lockedIDs   map[int64]bool
	balances    map[int64]decimal.Decimal
	withdrawals []domain.Withdrawal
}

func getTr(ctx context.Context) (*tx, bool) {
	tr, ok := ctx.Value(trKey).(*tx)
	return tr, ok
}

// Do runs fn in a unit of work. A nested call joins the outer one.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := getTr(ctx); ok {
		return fn(ctx)
	}

	tr := &tx{
		lockedIDs: make(map[int64]bool),
		balances:  make(map[int64]decimal.Decimal),
	}
	defer s.release(tr)

	if err := fn(context.WithValue(ctx, trKey, tr)); err != nil {
		return err
	}

	s.commit(tr)
	return nil
}

func (s *Store) commit(tr *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, balance := range tr.balances {
		acc := s.accounts[id]
		acc.Balance = balance
		s.accounts[id] = acc
	}
	s.withdrawals = append(s.withdrawals, tr.withdrawals...)
}

func (s *Store) release(tr *tx) {
	for i := len(tr.locked) - 1; i >= 0; i-- {
		tr.locked[i].Unlock()
	}
	tr.locked = nil
}

func (s *Store) accountLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.accountLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[id] = l
	}
	return l
}

// lockAccount takes the row lock for id unless tr already holds it. The lock
// is released when the unit of work ends.
func (s *Store) lockAccount(tr *tx, id int64) {
	if tr.lockedIDs[id] {
		return
	}
	l := s.accountLock(id)
	l.Lock()
	tr.locked = append(tr.locked, l)
	tr.lockedIDs[id] = true
}

func (s *Store) pause() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *Store) ResolveAuthorization(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	tr, _ := getTr(ctx)
	auth, err := s.resolve(tr, atmID, cardID)
	if err != nil {
		return nil, err
	}
	if tr != nil {
		s.pause()
	}
	return auth, nil
}

func (s *Store) ResolveAuthorizationForUpdate(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	tr, ok := getTr(ctx)
	if !ok {
		return nil, fmt.Errorf("%w: exclusive read outside a unit of work", domain.ErrStorage)
	}

	s.mu.RLock()
	card, ok := s.cards[cardID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}

	s.lockAccount(tr, card.AccountID)

	auth, err := s.resolve(tr, atmID, cardID)
	if err != nil {
		return nil, err
	}
	s.pause()
	return auth, nil
}

func (s *Store) resolve(tr *tx, atmID, cardID int64) (*domain.Authorization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}
	atm, ok := s.atms[atmID]
	if !ok {
		return nil, fmt.Errorf("%w: atm %d", domain.ErrNotFound, atmID)
	}
	acc, ok := s.accounts[card.AccountID]
	if !ok {
		return nil, fmt.Errorf("%w: account for card %d", domain.ErrNotFound, cardID)
	}

	balance := acc.Balance
	if tr != nil {
		if staged, ok := tr.balances[acc.ID]; ok {
			balance = staged
		}
	}

	return &domain.Authorization{
		AccountID:     acc.ID,
		Balance:       balance,
		Currency:      acc.Currency,
		IssuingBankID: card.IssuingBankID,
		ATMBankID:     atm.BankID,
		CardStatus:    card.Status,
		ATMStatus:     atm.Status,
	}, nil
}

func (s *Store) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tr, ok := getTr(ctx)
	if !ok {
		return fmt.Errorf("%w: write outside a unit of work", domain.ErrStorage)
	}
	if balance.IsNegative() {
		return fmt.Errorf("%w: balance of account %d would become negative", domain.ErrStorage, accountID)
	}

	s.mu.RLock()
	_, exists := s.accounts[accountID]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: account %d", domain.ErrNotFound, accountID)
	}

	// Writing a row locks it, as an UPDATE does in the database.
	s.lockAccount(tr, accountID)
	tr.balances[accountID] = domain.RoundMoney(balance)
	return nil
}

func (s *Store) AppendWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	tr, ok := getTr(ctx)
	if !ok {
		return fmt.Errorf("%w: write outside a unit of work", domain.ErrStorage)
	}
	w.ID = s.nextWithdrawalID.Add(1)
	tr.withdrawals = append(tr.withdrawals, *w)
	return nil
}

// Account returns the committed state of an account.
func (s *Store) Account(id int64) (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	return acc, ok
}

// Withdrawals returns committed ledger rows for accountID, or all rows when
// accountID is zero, in insertion order.
func (s *Store) Withdrawals(accountID int64) []domain.Withdrawal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Withdrawal
	for _, w := range s.withdrawals {
		if accountID == 0 || w.AccountID == accountID {
			out = append(out, w)
		}
	}
	return out
}

func sortOperations(ops []domain.Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].ID > ops[j].ID
		}
		return ops[i].CreatedAt.After(ops[j].CreatedAt)
	})
}

func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
