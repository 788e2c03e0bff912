package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

// Ports implemented by every data backend (SQLite, PostgreSQL, memory).
type (
	AccountStore interface {
		CreateAccount(ctx context.Context, a *core.Account) error
		ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
		// UpdateAccountBalance sets the balance and records it in the balance
		// history, one row per account and day.
		UpdateAccountBalance(ctx context.Context, userID, accountID int64, balance decimal.Decimal, day core.Date) error
		ListBalanceHistory(ctx context.Context, accountID int64) ([]core.AccountBalance, error)
	}

	CategoryStore interface {
		GetOrCreateCategory(ctx context.Context, userID int64, name string) (core.Category, error)
		ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t *core.Transaction) error
		GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
		// ListTransactions returns transactions dated in [from, to] ordered by
		// date then id.
		ListTransactions(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error)
	}

	RecurringStore interface {
		// CreateRecurring stores the expense and its first history row
		// (effective on the start date) atomically.
		CreateRecurring(ctx context.Context, e *core.RecurringExpense) error
		GetRecurring(ctx context.Context, userID, id int64) (core.RecurringExpense, error)
		ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error)
		// ListDueRecurring returns active expenses of every user with a next
		// date on or before day.
		ListDueRecurring(ctx context.Context, day core.Date) ([]core.RecurringExpense, error)
		// UpdateRecurringAmount changes the amount and appends a history row
		// effective on the given day atomically.
		UpdateRecurringAmount(ctx context.Context, userID, id int64, amount decimal.Decimal, effective core.Date) (core.RecurringExpense, error)
		// MaterializeOccurrence inserts the generated transaction and moves the
		// expense's next date atomically. A nil transaction only moves the date.
		MaterializeOccurrence(ctx context.Context, expenseID int64, next core.Date, t *core.Transaction) error
		DeactivateRecurring(ctx context.Context, userID, id int64) error
		ListHistory(ctx context.Context, expenseID int64) ([]core.RecurringExpenseHistory, error)
		ListHistoryByUser(ctx context.Context, userID int64) ([]core.RecurringExpenseHistory, error)
	}

	ForecastStore interface {
		// UpsertForecast inserts or replaces the forecast for (user, target
		// date). On replace the original id and created_at are kept and
		// written back into f.
		UpsertForecast(ctx context.Context, f *core.TargetDateForecast) error
		ListForecasts(ctx context.Context, userID int64) ([]core.TargetDateForecast, error)
		GetForecast(ctx context.Context, userID, id int64) (core.TargetDateForecast, error)
		DeleteForecast(ctx context.Context, userID, id int64) error
		ListForecastUsers(ctx context.Context) ([]int64, error)
	}

	Repository interface {
		AccountStore
		CategoryStore
		TransactionStore
		RecurringStore
		ForecastStore
		Ping(ctx context.Context) error
		Close() error
	}
)
