// Package memory is an in-process data backend for tests and local demos.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

type Store struct {
	mu        sync.Mutex
	nextID    int64
	accounts  []core.Account
	balances  []core.AccountBalance
	cats      []core.Category
	txs       []core.Transaction
	recurring []core.RecurringExpense
	history   []core.RecurringExpenseHistory
	forecasts []core.TargetDateForecast
	now       func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFiles seeds the categories of userID from seed_categories.txt in
// base, one name per line. Blank lines and # comments are ignored.
func NewFromFiles(base string, userID int64) *Store {
	s := New()
	names := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(names) == 0 {
		names = []string{"Housing", "Groceries", "Transport", "Utilities"}
	}
	for _, n := range names {
		if _, err := s.GetOrCreateCategory(context.Background(), userID, n); err != nil {
			slog.Warn("Skipping seed category", "user_id", userID, "name", n, "error", err)
		}
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) CreateAccount(_ context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Currency == "" {
		a.Currency = core.DefaultCurrency
	}
	a.ID = s.id()
	a.UpdatedAt = s.now().UTC()
	s.accounts = append(s.accounts, *a)
	return nil
}

func (s *Store) ListAccounts(_ context.Context, userID int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpdateAccountBalance(_ context.Context, userID, accountID int64, balance decimal.Decimal, day core.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, a := range s.accounts {
		if a.ID == accountID && a.UserID == userID {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("account %d: %w", accountID, core.ErrNotFound)
	}
	s.accounts[idx].Balance = balance
	s.accounts[idx].UpdatedAt = s.now().UTC()
	for i, b := range s.balances {
		if b.AccountID == accountID && b.Date.Equal(day) {
			s.balances[i].Balance = balance
			return nil
		}
	}
	s.balances = append(s.balances, core.AccountBalance{AccountID: accountID, Date: day, Balance: balance})
	return nil
}

func (s *Store) ListBalanceHistory(_ context.Context, accountID int64) ([]core.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.AccountBalance
	for _, b := range s.balances {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) GetOrCreateCategory(_ context.Context, userID int64, name string) (core.Category, error) {
	c := core.Category{UserID: userID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.UserID == userID && strings.EqualFold(existing.Name, c.Name) {
			return existing, nil
		}
	}
	c.ID = s.id()
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, userID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertTransaction(t)
	return nil
}

func (s *Store) insertTransaction(t *core.Transaction) {
	now := s.now().UTC()
	t.ID = s.id()
	t.CreatedAt, t.UpdatedAt = now, now
	s.txs = append(s.txs, *t)
}

func (s *Store) GetTransaction(_ context.Context, userID, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListTransactions(_ context.Context, userID int64, from, to core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.UserID != userID || t.Date.Before(from) || t.Date.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateRecurring(_ context.Context, e *core.RecurringExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	e.CreatedAt = s.now().UTC()
	s.recurring = append(s.recurring, *e)
	s.appendHistory(e.HistoryEntry(e.StartDate))
	return nil
}

func (s *Store) appendHistory(h core.RecurringExpenseHistory) {
	h.ID = s.id()
	h.CreatedAt = s.now().UTC()
	s.history = append(s.history, h)
}

func (s *Store) findRecurring(userID, id int64) int {
	for i, e := range s.recurring {
		if e.ID == id && (userID == 0 || e.UserID == userID) {
			return i
		}
	}
	return -1
}

func (s *Store) GetRecurring(_ context.Context, userID, id int64) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecurring(userID, id)
	if i < 0 {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %d: %w", id, core.ErrNotFound)
	}
	return s.recurring[i], nil
}

func (s *Store) ListActiveRecurring(_ context.Context, userID int64) ([]core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringExpense
	for _, e := range s.recurring {
		if e.UserID == userID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListDueRecurring(_ context.Context, day core.Date) ([]core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringExpense
	for _, e := range s.recurring {
		if e.IsActive && !e.NextDate.After(day) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpdateRecurringAmount(_ context.Context, userID, id int64, amount decimal.Decimal, effective core.Date) (core.RecurringExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecurring(userID, id)
	if i < 0 {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %d: %w", id, core.ErrNotFound)
	}
	s.recurring[i].Amount = amount
	s.appendHistory(s.recurring[i].HistoryEntry(effective))
	return s.recurring[i], nil
}

func (s *Store) MaterializeOccurrence(_ context.Context, expenseID int64, next core.Date, t *core.Transaction) error {
	if t != nil {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecurring(0, expenseID)
	if i < 0 {
		return fmt.Errorf("recurring expense %d: %w", expenseID, core.ErrNotFound)
	}
	if t != nil {
		s.insertTransaction(t)
	}
	s.recurring[i].NextDate = next
	return nil
}

func (s *Store) DeactivateRecurring(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findRecurring(userID, id)
	if i < 0 {
		return fmt.Errorf("recurring expense %d: %w", id, core.ErrNotFound)
	}
	s.recurring[i].IsActive = false
	return nil
}

func (s *Store) ListHistory(_ context.Context, expenseID int64) ([]core.RecurringExpenseHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringExpenseHistory
	for _, h := range s.history {
		if h.ExpenseID == expenseID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) ListHistoryByUser(_ context.Context, userID int64) ([]core.RecurringExpenseHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := map[int64]bool{}
	for _, e := range s.recurring {
		if e.UserID == userID {
			owned[e.ID] = true
		}
	}
	var out []core.RecurringExpenseHistory
	for _, h := range s.history {
		if owned[h.ExpenseID] {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) UpsertForecast(_ context.Context, f *core.TargetDateForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.forecasts {
		if existing.UserID == f.UserID && existing.TargetDate.Equal(f.TargetDate) {
			f.ID = existing.ID
			f.CreatedAt = existing.CreatedAt
			s.forecasts[i] = *f
			return nil
		}
	}
	f.ID = s.id()
	s.forecasts = append(s.forecasts, *f)
	return nil
}

func (s *Store) ListForecasts(_ context.Context, userID int64) ([]core.TargetDateForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TargetDateForecast
	for _, f := range s.forecasts {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

func (s *Store) GetForecast(_ context.Context, userID, id int64) (core.TargetDateForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.forecasts {
		if f.ID == id && f.UserID == userID {
			return f, nil
		}
	}
	return core.TargetDateForecast{}, fmt.Errorf("forecast %d: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteForecast(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.forecasts {
		if f.ID == id && f.UserID == userID {
			s.forecasts = append(s.forecasts[:i], s.forecasts[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("forecast %d: %w", id, core.ErrNotFound)
}

func (s *Store) ListForecastUsers(context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for _, f := range s.forecasts {
		if !seen[f.UserID] {
			seen[f.UserID] = true
			out = append(out, f.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
