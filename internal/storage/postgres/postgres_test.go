package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/core"
)

func TestModels_RoundTrip(t *testing.T) {
	e := core.RecurringExpense{
		ID: 7, UserID: 1, Name: "Rent", Amount: decimal.RequireFromString("-1200.00"),
		Frequency: core.Monthly, NextDate: core.NewDate(2025, 4, 1), StartDate: core.NewDate(2024, 1, 1),
		IsActive: true,
	}
	m := recurringFromCore(e)
	assert.True(t, m.EndDate.IsZero(), "empty end date stays NULL")
	got := m.toCore()
	assert.True(t, got.EndDate.IsEmpty())
	assert.Equal(t, "2025-04-01", got.NextDate.String())
	assert.True(t, got.Amount.Equal(e.Amount))

	tx := core.Transaction{UserID: 1, Date: core.NewDate(2025, 3, 6), Amount: decimal.NewFromInt(-5),
		Description: "coffee", Source: core.SourceManual}
	tm := transactionFromCore(tx)
	assert.Equal(t, "2025-03-03", core.DateOf(tm.WeekStartDate).String())
	assert.Zero(t, tm.RecurringExpenseID)

	f := forecastFromCore(core.TargetDateForecast{UserID: 1, TargetDate: core.NewDate(2025, 12, 25)})
	assert.NotNil(t, f.Snapshot)
	assert.Empty(t, f.Snapshot)
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("BUDGETCAL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BUDGETCAL_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := Open(ctx, dsn)
	require.NoError(t, err)
	for _, table := range []string{"transactions", "recurring_expense_history", "recurring_expenses",
		"target_date_forecasts", "account_balance_history", "accounts", "categories"} {
		_, err := repo.db.ExecContext(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE")
		require.NoError(t, err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPostgres_RecurringLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	e := core.RecurringExpense{
		UserID: 1, Name: "Internet", Amount: decimal.RequireFromString("-79.95"), Frequency: core.Monthly,
		NextDate: core.NewDate(2025, 1, 31), StartDate: core.NewDate(2024, 10, 31), IsActive: true,
	}
	require.NoError(t, repo.CreateRecurring(ctx, &e))

	_, err := repo.UpdateRecurringAmount(ctx, 1, e.ID, decimal.RequireFromString("-89.95"), core.NewDate(2025, 2, 15))
	require.NoError(t, err)

	hist, err := repo.ListHistoryByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2024-10-31", hist[0].EffectiveDate.String())

	tx := core.Transaction{UserID: 1, Date: e.NextDate, Amount: decimal.RequireFromString("-79.95"),
		Description: e.Name, Source: core.SourceRecurring, RecurringExpenseID: e.ID}
	require.NoError(t, repo.MaterializeOccurrence(ctx, e.ID, core.NewDate(2025, 2, 28), &tx))
	require.NoError(t, repo.MaterializeOccurrence(ctx, e.ID, core.NewDate(2025, 3, 31), nil))

	got, err := repo.GetRecurring(ctx, 1, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", got.NextDate.String())

	txs, err := repo.ListTransactions(ctx, 1, core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, e.ID, txs[0].RecurringExpenseID)

	require.NoError(t, repo.DeactivateRecurring(ctx, 1, e.ID))
	assert.ErrorIs(t, repo.DeactivateRecurring(ctx, 2, e.ID), core.ErrNotFound)
}

func TestPostgres_ForecastUpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	f := core.TargetDateForecast{UserID: 1, Name: "Xmas", TargetDate: core.NewDate(2025, 12, 25),
		ProjectedBalance: decimal.RequireFromString("900"), CreatedAt: time.Now().UTC(), LastCalculated: time.Now().UTC()}
	require.NoError(t, repo.UpsertForecast(ctx, &f))

	g := f
	g.ID = 0
	g.Name = "Christmas"
	require.NoError(t, repo.UpsertForecast(ctx, &g))
	assert.Equal(t, f.ID, g.ID)

	stored, err := repo.GetForecast(ctx, 1, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Christmas", stored.Name)

	users, err := repo.ListForecastUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, users)

	cat, err := repo.GetOrCreateCategory(ctx, 1, "Groceries")
	require.NoError(t, err)
	again, err := repo.GetOrCreateCategory(ctx, 1, "groceries")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, again.ID)
}
