package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

// LedgerStore is what LedgerService needs from a backend.
type LedgerStore interface {
	storage.AccountStore
	storage.CategoryStore
	storage.TransactionStore
}

// LedgerService records accounts, balances and transactions, and asks for a
// forecast recalculation whenever a change can move a projection.
type LedgerService struct {
	store     LedgerStore
	publisher Publisher
	now       func() time.Time
}

func NewLedgerService(store LedgerStore, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Balance = core.RoundMoney(a.Balance)
	if err := s.store.CreateAccount(ctx, &a); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account created",
		"user_id", a.UserID,
		"account_id", a.ID,
		"type", a.Type)
	if a.IsActive && a.IncludeInCalculations {
		notify(ctx, s.publisher, a.UserID, amqp.ReasonBalanceChanged)
	}
	return a, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	out, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// UpdateBalance sets the current balance of an account, recorded as today's
// entry in its balance history.
func (s *LedgerService) UpdateBalance(ctx context.Context, userID, accountID int64, balance decimal.Decimal) error {
	today := core.DateOf(s.now())
	if err := s.store.UpdateAccountBalance(ctx, userID, accountID, core.RoundMoney(balance), today); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	slog.InfoContext(ctx, "Account balance updated",
		"user_id", userID,
		"account_id", accountID,
		"balance", core.FormatMoney(balance))
	notify(ctx, s.publisher, userID, amqp.ReasonBalanceChanged)
	return nil
}

// AddTransaction stores a transaction, creating the named category on first
// use. Only transactions dated after today affect stored forecasts.
func (s *LedgerService) AddTransaction(ctx context.Context, t core.Transaction, category string) (core.Transaction, error) {
	if t.Source == "" {
		t.Source = core.SourceManual
	}
	t.Description = strings.TrimSpace(t.Description)
	t.Amount = core.RoundMoney(t.Amount)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if category = strings.TrimSpace(category); category != "" {
		c, err := s.store.GetOrCreateCategory(ctx, t.UserID, category)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("resolve category: %w", err)
		}
		t.CategoryID = c.ID
	}

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction created",
		"user_id", t.UserID,
		"transaction_id", t.ID,
		"date", t.Date.String(),
		"amount", core.FormatMoney(t.Amount),
		"source", t.Source)

	if t.Date.After(core.DateOf(s.now())) && t.Source != core.SourceRecurring {
		notify(ctx, s.publisher, t.UserID, amqp.ReasonTransactionAdded)
	}
	return t, nil
}
