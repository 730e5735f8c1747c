// Package memory is an in-process ledger.Store. Each user's transactions are
// serialized by a per-user lock; writes are staged in the transaction and
// published to the store only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pfm/internal/core"
	"pfm/internal/ledger"
)

const DefaultLockTimeout = 5 * time.Second

type Store struct {
	mu          sync.RWMutex
	users       map[core.ID]core.User
	emails      map[string]core.ID
	expenses    map[core.ID]core.Expense
	investments map[core.ID]core.Investment
	budgets     map[core.ID]core.Budget

	nextID      atomic.Int64
	lockTimeout time.Duration
	locksMu     sync.Mutex
	locks       map[core.ID]chan struct{}
}

var _ ledger.Store = (*Store)(nil)

// New returns an empty store. A non-positive lockTimeout selects DefaultLockTimeout.
func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		users:       map[core.ID]core.User{},
		emails:      map[string]core.ID{},
		expenses:    map[core.ID]core.Expense{},
		investments: map[core.ID]core.Investment{},
		budgets:     map[core.ID]core.Budget{},
		lockTimeout: lockTimeout,
		locks:       map[core.ID]chan struct{}{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateUser(_ context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[u.Email]; taken {
		return core.ErrEmailTaken
	}
	u.ID = core.ID(s.nextID.Add(1))
	s.users[u.ID] = *u
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.ID) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	s.mu.RLock()
	id, ok := s.emails[email]
	s.mu.RUnlock()
	if !ok {
		return core.User{}, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetExpense(ctx context.Context, id core.ID) (core.Expense, error) {
	return s.view().GetExpense(ctx, id)
}

func (s *Store) ListExpenses(ctx context.Context, userID core.ID) ([]core.Expense, error) {
	return s.view().ListExpenses(ctx, userID)
}

func (s *Store) ListExpensesBetween(ctx context.Context, userID core.ID, from, to core.Date) ([]core.Expense, error) {
	return s.view().ListExpensesBetween(ctx, userID, from, to)
}

func (s *Store) GetInvestment(ctx context.Context, id core.ID) (core.Investment, error) {
	return s.view().GetInvestment(ctx, id)
}

func (s *Store) ListInvestments(ctx context.Context, userID core.ID) ([]core.Investment, error) {
	return s.view().ListInvestments(ctx, userID)
}

func (s *Store) GetBudget(ctx context.Context, id core.ID) (core.Budget, error) {
	return s.view().GetBudget(ctx, id)
}

func (s *Store) ListBudgets(ctx context.Context, userID core.ID) ([]core.Budget, error) {
	return s.view().ListBudgets(ctx, userID)
}

func (s *Store) ListActiveBudgets(ctx context.Context, userID core.ID, category string, date core.Date) ([]core.Budget, error) {
	return s.view().ListActiveBudgets(ctx, userID, category, date)
}

// view is a transaction with nothing staged; it only reads committed state.
func (s *Store) view() *tx {
	return newTx(s, 0)
}

// InUserTx implements ledger.Store.
func (s *Store) InUserTx(ctx context.Context, userID core.ID, fn func(ledger.Tx) error) error {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}
	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	t := newTx(s, userID)
	if err := fn(t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) lockUser(ctx context.Context, userID core.ID) (func(), error) {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[userID] = l
	}
	s.locksMu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case l <- struct{}{}:
		return func() { <-l }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: user %d: %w", core.ErrStorageConflict, userID, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("%w: user %d balance lock not acquired within %s", core.ErrStorageConflict, userID, s.lockTimeout)
	}
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.balance != nil {
		u := s.users[t.userID]
		u.Balance = *t.balance
		s.users[t.userID] = u
	}
	t.expenses.apply(s.expenses)
	t.investments.apply(s.investments)
	t.budgets.apply(s.budgets)
}

// staged holds the uncommitted writes of one entity kind.
type staged[T any] struct {
	puts map[core.ID]T
	dels map[core.ID]struct{}
}

func newStaged[T any]() staged[T] {
	return staged[T]{puts: map[core.ID]T{}, dels: map[core.ID]struct{}{}}
}

func (st staged[T]) put(id core.ID, v T) {
	delete(st.dels, id)
	st.puts[id] = v
}

func (st staged[T]) del(id core.ID) {
	delete(st.puts, id)
	st.dels[id] = struct{}{}
}

func (st staged[T]) apply(base map[core.ID]T) {
	for id := range st.dels {
		delete(base, id)
	}
	for id, v := range st.puts {
		base[id] = v
	}
}

// get reads id through the staged writes. The caller holds the store read lock.
func (st staged[T]) get(base map[core.ID]T, id core.ID) (T, bool) {
	if _, gone := st.dels[id]; gone {
		var zero T
		return zero, false
	}
	if v, ok := st.puts[id]; ok {
		return v, true
	}
	v, ok := base[id]
	return v, ok
}

// list returns the rows accepted by keep, ordered by id.
func (st staged[T]) list(base map[core.ID]T, keep func(T) bool) []T {
	ids := make([]core.ID, 0, len(base)+len(st.puts))
	for id := range base {
		if _, ok := st.puts[id]; !ok {
			ids = append(ids, id)
		}
	}
	for id := range st.puts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := st.get(base, id); ok && keep(v) {
			out = append(out, v)
		}
	}
	return out
}

type tx struct {
	s           *Store
	userID      core.ID
	balance     *core.Money
	expenses    staged[core.Expense]
	investments staged[core.Investment]
	budgets     staged[core.Budget]
}

func newTx(s *Store, userID core.ID) *tx {
	return &tx{
		s:           s,
		userID:      userID,
		expenses:    newStaged[core.Expense](),
		investments: newStaged[core.Investment](),
		budgets:     newStaged[core.Budget](),
	}
}

func (t *tx) UserID() core.ID { return t.userID }

func (t *tx) GetUser(ctx context.Context, id core.ID) (core.User, error) {
	u, err := t.s.GetUser(ctx, id)
	if err == nil && id == t.userID && t.balance != nil {
		u.Balance = *t.balance
	}
	return u, err
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := t.s.GetUserByEmail(ctx, email)
	if err == nil && u.ID == t.userID && t.balance != nil {
		u.Balance = *t.balance
	}
	return u, err
}

func (t *tx) Balance(ctx context.Context) (core.Money, error) {
	if t.balance != nil {
		return *t.balance, nil
	}
	u, err := t.s.GetUser(ctx, t.userID)
	if err != nil {
		return core.Zero, err
	}
	return u.Balance, nil
}

func (t *tx) SetBalance(_ context.Context, balance core.Money) error {
	t.balance = &balance
	return nil
}

func (t *tx) GetExpense(_ context.Context, id core.ID) (core.Expense, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	e, ok := t.expenses.get(t.s.expenses, id)
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (t *tx) ListExpenses(_ context.Context, userID core.ID) ([]core.Expense, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.expenses.list(t.s.expenses, func(e core.Expense) bool {
		return e.UserID == userID
	}), nil
}

func (t *tx) ListExpensesBetween(_ context.Context, userID core.ID, from, to core.Date) ([]core.Expense, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.expenses.list(t.s.expenses, func(e core.Expense) bool {
		return e.UserID == userID && !e.Date.Before(from) && !e.Date.After(to)
	}), nil
}

func (t *tx) SaveExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == 0 {
		e.ID = core.ID(t.s.nextID.Add(1))
		e.UserID = t.userID
	} else if cur, err := t.GetExpense(ctx, e.ID); err != nil {
		return err
	} else if cur.UserID != t.userID {
		return fmt.Errorf("expense %d: %w", e.ID, core.ErrNotFound)
	}
	t.expenses.put(e.ID, *e)
	return nil
}

func (t *tx) DeleteExpense(ctx context.Context, id core.ID) error {
	cur, err := t.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if cur.UserID != t.userID {
		return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	t.expenses.del(id)
	return nil
}

func (t *tx) GetInvestment(_ context.Context, id core.ID) (core.Investment, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	i, ok := t.investments.get(t.s.investments, id)
	if !ok {
		return core.Investment{}, fmt.Errorf("investment %d: %w", id, core.ErrNotFound)
	}
	return i, nil
}

func (t *tx) ListInvestments(_ context.Context, userID core.ID) ([]core.Investment, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.investments.list(t.s.investments, func(i core.Investment) bool {
		return i.UserID == userID
	}), nil
}

func (t *tx) SaveInvestment(ctx context.Context, i *core.Investment) error {
	if i.ID == 0 {
		i.ID = core.ID(t.s.nextID.Add(1))
		i.UserID = t.userID
	} else if cur, err := t.GetInvestment(ctx, i.ID); err != nil {
		return err
	} else if cur.UserID != t.userID {
		return fmt.Errorf("investment %d: %w", i.ID, core.ErrNotFound)
	}
	t.investments.put(i.ID, *i)
	return nil
}

func (t *tx) DeleteInvestment(ctx context.Context, id core.ID) error {
	cur, err := t.GetInvestment(ctx, id)
	if err != nil {
		return err
	}
	if cur.UserID != t.userID {
		return fmt.Errorf("investment %d: %w", id, core.ErrNotFound)
	}
	t.investments.del(id)
	return nil
}

func (t *tx) GetBudget(_ context.Context, id core.ID) (core.Budget, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.budgets.get(t.s.budgets, id)
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (t *tx) ListBudgets(_ context.Context, userID core.ID) ([]core.Budget, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.budgets.list(t.s.budgets, func(b core.Budget) bool {
		return b.UserID == userID
	}), nil
}

func (t *tx) ListActiveBudgets(_ context.Context, userID core.ID, category string, date core.Date) ([]core.Budget, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return t.budgets.list(t.s.budgets, func(b core.Budget) bool {
		return b.UserID == userID && strings.EqualFold(b.Category, category) && b.Contains(date)
	}), nil
}

func (t *tx) SaveBudget(ctx context.Context, b *core.Budget) error {
	if b.ID == 0 {
		b.ID = core.ID(t.s.nextID.Add(1))
		b.UserID = t.userID
	} else if cur, err := t.GetBudget(ctx, b.ID); err != nil {
		return err
	} else if cur.UserID != t.userID {
		return fmt.Errorf("budget %d: %w", b.ID, core.ErrNotFound)
	}
	t.budgets.put(b.ID, *b)
	return nil
}

func (t *tx) DeleteBudget(ctx context.Context, id core.ID) error {
	cur, err := t.GetBudget(ctx, id)
	if err != nil {
		return err
	}
	if cur.UserID != t.userID {
		return fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	t.budgets.del(id)
	return nil
}
