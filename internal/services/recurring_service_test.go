package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/forecast"
	"budgetcal/internal/storage/memory"
)

func TestRecurringService_CreateDefaultsDates(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewRecurringService(memory.New(), pub).WithClock(clockAt("2025-04-02"))

	e, err := svc.Create(ctx, core.RecurringExpense{
		UserID: 1, Name: "  Streaming ", Amount: amt("-16.999"), Frequency: core.Monthly,
	})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, "Streaming", e.Name)
	assert.True(t, e.Amount.Equal(amt("-17")))
	assert.Equal(t, "2025-04-02", e.StartDate.String())
	assert.Equal(t, "2025-04-02", e.NextDate.String())
	assert.True(t, e.IsActive)
	assert.Equal(t, []published{{UserID: 1, Reason: amqp.ReasonRecurringChanged}}, pub.sent())

	later, err := svc.Create(ctx, core.RecurringExpense{
		UserID: 1, Name: "Rates", Amount: amt("-450"), Frequency: core.Quarterly, NextDate: d("2025-07-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", later.StartDate.String())
}

func TestRecurringService_CreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewRecurringService(memory.New(), pub)

	tests := map[string]struct {
		in   core.RecurringExpense
		want error
	}{
		"empty name":  {core.RecurringExpense{Amount: amt("-1"), Frequency: core.Weekly}, core.ErrEmptyName},
		"zero amount": {core.RecurringExpense{Name: "x", Amount: amt("0.001"), Frequency: core.Weekly}, core.ErrInvalidAmount},
		"frequency":   {core.RecurringExpense{Name: "x", Amount: amt("-1"), Frequency: "daily"}, core.ErrInvalidFrequency},
		"end before start": {core.RecurringExpense{Name: "x", Amount: amt("-1"), Frequency: core.Weekly,
			StartDate: d("2025-02-01"), EndDate: d("2025-01-01")}, core.ErrInvalidDateRange},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, pub.sent(), "nothing is published for rejected input")
}

func TestRecurringService_UpdateAmountAppendsHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewRecurringService(store, pub).WithClock(clockAt("2025-06-20"))
	e := createRecurring(t, store, core.RecurringExpense{
		Name: "Power", Amount: amt("-120"), Frequency: core.Monthly, NextDate: d("2025-06-01"),
	})

	updated, err := svc.UpdateAmount(ctx, 1, e.ID, amt("-135.50"), core.Date{})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amt("-135.50")))

	hist, err := svc.History(ctx, 1, e.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2025-06-20", hist[1].EffectiveDate.String(), "zero effective date means today")
	assert.Equal(t, []published{{UserID: 1, Reason: amqp.ReasonRecurringChanged}}, pub.sent())

	_, err = svc.UpdateAmount(ctx, 1, e.ID, amt("0"), d("2025-06-01"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.UpdateAmount(ctx, 2, e.ID, amt("-1"), d("2025-06-01"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.History(ctx, 2, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRecurringService_AmountChangesReachForecast(t *testing.T) {
	tests := map[string]struct {
		effective     core.Date
		wantEffective string
		wantAmounts   []string
		wantBalance   string
		wantSnapshot  string
	}{
		"no date before start": {
			effective: core.Date{}, wantEffective: "2025-04-01",
			wantAmounts: []string{"-60", "-60"}, wantBalance: "880", wantSnapshot: "-60",
		},
		"explicit date before start": {
			effective: d("2025-02-01"), wantEffective: "2025-04-01",
			wantAmounts: []string{"-60", "-60"}, wantBalance: "880", wantSnapshot: "-60",
		},
		"inside window": {
			effective: d("2025-04-15"), wantEffective: "2025-04-15",
			wantAmounts: []string{"-50", "-60"}, wantBalance: "890", wantSnapshot: "-50",
		},
		"after target": {
			effective: d("2025-06-01"), wantEffective: "2025-06-01",
			wantAmounts: []string{"-50", "-50"}, wantBalance: "900", wantSnapshot: "-50",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			require.NoError(t, store.CreateAccount(ctx, &core.Account{
				UserID: 1, Name: "Everyday", Type: core.AccountChecking,
				Balance: amt("1000"), IncludeInCalculations: true, IsActive: true,
			}))
			recurring := NewRecurringService(store, nil).WithClock(clockAt("2025-03-01"))
			forecasts := forecast.NewService(store, forecast.Calculator{}).WithClock(clockAt("2025-03-01"))

			e, err := recurring.Create(ctx, core.RecurringExpense{
				UserID: 1, Name: "Gym", Amount: amt("-50"), Frequency: core.Monthly, StartDate: d("2025-04-01"),
			})
			require.NoError(t, err)
			_, err = recurring.UpdateAmount(ctx, 1, e.ID, amt("-60"), tt.effective)
			require.NoError(t, err)

			hist, err := recurring.History(ctx, 1, e.ID)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, tt.wantEffective, hist[1].EffectiveDate.String())

			out, err := forecasts.ForecastToTargetDate(ctx, 1, d("2025-05-01"), "")
			require.NoError(t, err)
			require.Len(t, out.Breakdown.Occurrences, len(tt.wantAmounts))
			for i, o := range out.Breakdown.Occurrences {
				assert.True(t, o.Amount.Equal(amt(tt.wantAmounts[i])), "%s priced %s", o.Date, o.Amount)
			}
			assert.True(t, out.Forecast.ProjectedBalance.Equal(amt(tt.wantBalance)),
				"projected %s", out.Forecast.ProjectedBalance)
			require.Len(t, out.Forecast.Snapshot, 1)
			assert.True(t, out.Forecast.Snapshot[0].Amount.Equal(amt(tt.wantSnapshot)),
				"snapshot %s", out.Forecast.Snapshot[0].Amount)
		})
	}
}

func TestRecurringService_Deactivate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{err: errBroker}
	svc := NewRecurringService(store, pub)
	e := createRecurring(t, store, core.RecurringExpense{
		Name: "Paper", Amount: amt("-5"), Frequency: core.Weekly, NextDate: d("2025-06-02"),
	})

	require.NoError(t, svc.Deactivate(ctx, 1, e.ID), "publish failures are not surfaced")
	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, svc.Deactivate(ctx, 1, 999), core.ErrNotFound)
}
