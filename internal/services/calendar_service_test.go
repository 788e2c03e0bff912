package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/core"
	"budgetcal/internal/storage/memory"
)

func calendarFixture(t *testing.T) (*memory.Store, *CalendarService) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	groceries, err := store.GetOrCreateCategory(ctx, 1, "Groceries")
	require.NoError(t, err)

	for _, tx := range []core.Transaction{
		{Date: d("2025-03-03"), Amount: amt("-20"), Description: "Market", CategoryID: groceries.ID},
		{Date: d("2025-03-04"), Amount: amt("1000"), Description: "Salary"},
		{Date: d("2025-03-11"), Amount: amt("-5"), Description: "Parking"},
	} {
		tx.UserID = 1
		tx.Source = core.SourceManual
		require.NoError(t, store.CreateTransaction(ctx, &tx))
	}
	createRecurring(t, store, core.RecurringExpense{
		Name: "Gym", Amount: amt("-15"), Frequency: core.Weekly, NextDate: d("2025-03-07"),
	})
	createRecurring(t, store, core.RecurringExpense{
		Name: "Phone", Amount: amt("-50"), Frequency: core.Monthly, NextDate: d("2025-03-05"),
	})
	return store, NewCalendarService(store).WithClock(clockAt("2025-03-05"))
}

func TestCalendarService_Weeks(t *testing.T) {
	_, svc := calendarFixture(t)

	weeks, err := svc.Weeks(context.Background(), 1, d("2025-03-05"), 2)
	require.NoError(t, err)
	require.Len(t, weeks, 2)

	first := weeks[0]
	assert.Equal(t, "2025-03-03", first.Summary.WeekStart.String())
	assert.Equal(t, "2025-03-09", first.Summary.WeekEnd.String())
	assert.Equal(t, 2, first.Summary.Count)
	assert.True(t, first.Summary.Total.Equal(amt("980")))
	require.Len(t, first.Days, 7)
	assert.True(t, first.Days[0].Total.Equal(amt("-20")))
	assert.Empty(t, first.Days[2].Upcoming, "occurrences due today are already booked")
	require.Len(t, first.Days[4].Upcoming, 1)
	assert.Equal(t, "Gym", first.Days[4].Upcoming[0].Name)

	second := weeks[1]
	assert.Equal(t, "2025-03-10", second.Summary.WeekStart.String())
	assert.Equal(t, 1, second.Summary.Count)
	require.Len(t, second.Days[4].Upcoming, 1)
	assert.Equal(t, "2025-03-14", second.Days[4].Upcoming[0].Date.String())
}

func TestCalendarService_WeeksClamped(t *testing.T) {
	_, svc := calendarFixture(t)
	ctx := context.Background()

	weeks, err := svc.Weeks(ctx, 1, core.Date{}, 0)
	require.NoError(t, err)
	assert.Len(t, weeks, DefaultCalendarWeeks)
	assert.Equal(t, "2025-03-03", weeks[0].Summary.WeekStart.String())

	weeks, err = svc.Weeks(ctx, 1, d("2025-03-05"), 50)
	require.NoError(t, err)
	assert.Len(t, weeks, MaxCalendarWeeks)
}

func TestCalendarService_BudgetSummary(t *testing.T) {
	_, svc := calendarFixture(t)
	ctx := context.Background()

	sum, err := svc.BudgetSummary(ctx, 1, d("2025-03-01"), d("2025-03-31"))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.True(t, sum.Income.Equal(amt("1000")))
	assert.True(t, sum.Expenses.Equal(amt("-25")))
	assert.True(t, sum.Net.Equal(amt("975")))
	require.Len(t, sum.ByCategory, 2)
	assert.Equal(t, "Groceries", sum.ByCategory[0].Name)
	assert.Equal(t, core.Uncategorized, sum.ByCategory[1].Name)
	assert.True(t, sum.ByCategory[1].Amount.Equal(amt("995")))

	_, err = svc.BudgetSummary(ctx, 1, d("2025-03-31"), d("2025-03-01"))
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestCalendarService_Upcoming(t *testing.T) {
	_, svc := calendarFixture(t)

	occ, err := svc.Upcoming(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, occ, 3)
	assert.Equal(t, "Phone", occ[0].Name)
	assert.Equal(t, "2025-03-05", occ[0].Date.String())
	assert.Equal(t, "2025-03-07", occ[1].Date.String())
	assert.Equal(t, "2025-03-14", occ[2].Date.String())
}

func TestCalendarService_TransactionOwnership(t *testing.T) {
	store, svc := calendarFixture(t)
	ctx := context.Background()

	txs, err := store.ListTransactions(ctx, 1, d("2025-03-01"), d("2025-03-31"))
	require.NoError(t, err)
	got, err := svc.Transaction(ctx, 1, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Market", got.Description)

	_, err = svc.Transaction(ctx, 2, txs[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	recurring, err := svc.Recurring(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recurring, 2)
}
