package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/storage/memory"
)

func TestLedgerService_Accounts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub).WithClock(clockAt("2025-03-01"))

	a, err := svc.CreateAccount(ctx, core.Account{UserID: 1, Name: " Everyday ", Type: core.AccountChecking,
		Balance: amt("100.005"), IncludeInCalculations: true, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "Everyday", a.Name)
	assert.True(t, a.Balance.Equal(amt("100.01")))

	_, err = svc.CreateAccount(ctx, core.Account{UserID: 1, Name: "Super", Type: core.AccountInvestment, IsActive: true})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateBalance(ctx, 1, a.ID, amt("250")))
	hist, err := store.ListBalanceHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "2025-03-01", hist[0].Date.String())

	assert.ErrorIs(t, svc.UpdateBalance(ctx, 2, a.ID, amt("1")), core.ErrNotFound)

	accounts, err := svc.ListAccounts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	// The excluded investment account does not trigger a recalculation
	assert.Equal(t, []published{
		{UserID: 1, Reason: amqp.ReasonBalanceChanged},
		{UserID: 1, Reason: amqp.ReasonBalanceChanged},
	}, pub.sent())
}

func TestLedgerService_AddTransaction(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, pub).WithClock(clockAt("2025-03-01"))

	past, err := svc.AddTransaction(ctx, core.Transaction{UserID: 1, Date: d("2025-02-27"),
		Amount: amt("-12.40"), Description: "Lunch"}, "Eating out")
	require.NoError(t, err)
	assert.Equal(t, core.SourceManual, past.Source)
	assert.NotZero(t, past.CategoryID)
	assert.Empty(t, pub.sent(), "past transactions do not move forecasts")

	again, err := svc.AddTransaction(ctx, core.Transaction{UserID: 1, Date: d("2025-02-28"),
		Amount: amt("-8"), Description: "Coffee"}, "eating out")
	require.NoError(t, err)
	assert.Equal(t, past.CategoryID, again.CategoryID)

	_, err = svc.AddTransaction(ctx, core.Transaction{UserID: 1, Date: d("2025-03-15"),
		Amount: amt("2000"), Description: "Bonus"}, "")
	require.NoError(t, err)
	assert.Equal(t, []published{{UserID: 1, Reason: amqp.ReasonTransactionAdded}}, pub.sent())

	_, err = svc.AddTransaction(ctx, core.Transaction{UserID: 1, Date: d("2025-03-15"),
		Amount: amt("-1"), Description: "  "}, "")
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
}
