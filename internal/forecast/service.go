package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"budgetcal/internal/core"
)

// Store is the persistence the forecast service reads from and writes to.
type Store interface {
	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
	ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error)
	ListHistoryByUser(ctx context.Context, userID int64) ([]core.RecurringExpenseHistory, error)
	ListTransactions(ctx context.Context, userID int64, from, to core.Date) ([]core.Transaction, error)

	UpsertForecast(ctx context.Context, f *core.TargetDateForecast) error
	ListForecasts(ctx context.Context, userID int64) ([]core.TargetDateForecast, error)
	GetForecast(ctx context.Context, userID, id int64) (core.TargetDateForecast, error)
	DeleteForecast(ctx context.Context, userID, id int64) error
	ListForecastUsers(ctx context.Context) ([]int64, error)
}

// Outcome is a persisted forecast together with its calculation breakdown.
type Outcome struct {
	Forecast  core.TargetDateForecast `json:"forecast"`
	Breakdown Result                  `json:"calculation_details"`
}

// Service loads a user's data, runs the calculator and stores the result.
type Service struct {
	store Store
	calc  Calculator
	now   func() time.Time
	group singleflight.Group
}

func NewService(store Store, calc Calculator) *Service {
	return &Service{
		store: store,
		calc:  calc,
		now:   time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Today is the calculation date used by every operation.
func (s *Service) Today() core.Date {
	return core.DateOf(s.now())
}

func (s *Service) loadInput(ctx context.Context, userID int64, today, target core.Date) (Input, error) {
	in := Input{UserID: userID, Today: today, Target: target}

	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("list accounts: %w", err)
	}
	in.Accounts = accounts

	expenses, err := s.store.ListActiveRecurring(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("list recurring expenses: %w", err)
	}
	history, err := s.store.ListHistoryByUser(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("list recurring history: %w", err)
	}
	in.Expenses = Attach(expenses, history)

	if target.After(today) {
		txs, err := s.store.ListTransactions(ctx, userID, today.AddDays(1), target)
		if err != nil {
			return in, fmt.Errorf("list future transactions: %w", err)
		}
		in.Transactions = txs
	}
	return in, nil
}

// Preview calculates a projection without persisting it.
func (s *Service) Preview(ctx context.Context, userID int64, target core.Date) (Result, error) {
	in, err := s.loadInput(ctx, userID, s.Today(), target)
	if err != nil {
		return Result{}, err
	}
	return s.calc.Calculate(in)
}

// ForecastToTargetDate calculates the projection for target and stores it,
// replacing any earlier forecast of the same user for the same date. Nothing
// is written when the calculation fails. Identical concurrent requests share
// one calculation.
func (s *Service) ForecastToTargetDate(ctx context.Context, userID int64, target core.Date, name string) (Outcome, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = core.DefaultForecastName(target)
	}
	key := fmt.Sprintf("%d|%s|%s", userID, target, name)
	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.calculateAndStore(ctx, userID, target, name)
	})
	if err != nil {
		return Outcome{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Forecast calculation shared", "user_id", userID, "target_date", target.String())
	}
	return v.(Outcome), nil
}

func (s *Service) calculateAndStore(ctx context.Context, userID int64, target core.Date, name string) (Outcome, error) {
	today := s.Today()
	in, err := s.loadInput(ctx, userID, today, target)
	if err != nil {
		return Outcome{}, err
	}
	res, err := s.calc.Calculate(in)
	if err != nil {
		return Outcome{}, err
	}

	now := s.now().UTC()
	f := core.TargetDateForecast{
		UserID:           userID,
		Name:             name,
		TargetDate:       target,
		ProjectedBalance: res.ProjectedBalance,
		Snapshot:         res.Snapshot,
		CreatedAt:        now,
		LastCalculated:   now,
	}
	if err := s.store.UpsertForecast(ctx, &f); err != nil {
		return Outcome{}, fmt.Errorf("store forecast: %w", err)
	}

	slog.InfoContext(ctx, "Forecast calculated",
		"user_id", userID,
		"forecast_id", f.ID,
		"target_date", target.String(),
		"current_balance", core.FormatMoney(res.CurrentBalance),
		"projected_balance", core.FormatMoney(res.ProjectedBalance),
		"occurrences", len(res.Occurrences))

	return Outcome{Forecast: f, Breakdown: res}, nil
}

// Recalculate refreshes every stored forecast of the user whose target date
// has not passed yet. It returns how many were refreshed.
func (s *Service) Recalculate(ctx context.Context, userID int64) (int, error) {
	forecasts, err := s.store.ListForecasts(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list forecasts: %w", err)
	}
	today := s.Today()
	count := 0
	for _, f := range forecasts {
		if f.TargetDate.Before(today) {
			continue
		}
		if _, err := s.ForecastToTargetDate(ctx, userID, f.TargetDate, f.Name); err != nil {
			return count, fmt.Errorf("recalculate forecast %d: %w", f.ID, err)
		}
		count++
	}
	return count, nil
}

// RecalculateForecast refreshes a single stored forecast.
func (s *Service) RecalculateForecast(ctx context.Context, userID, id int64) (Outcome, error) {
	f, err := s.store.GetForecast(ctx, userID, id)
	if err != nil {
		return Outcome{}, err
	}
	return s.ForecastToTargetDate(ctx, userID, f.TargetDate, f.Name)
}

// RecalculateAll runs Recalculate for every user that has forecasts. Errors
// for one user are logged and do not stop the others.
func (s *Service) RecalculateAll(ctx context.Context) (int, error) {
	users, err := s.store.ListForecastUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list forecast users: %w", err)
	}
	total := 0
	for _, userID := range users {
		n, err := s.Recalculate(ctx, userID)
		total += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to recalculate forecasts", "user_id", userID, "error", err)
		}
	}
	return total, nil
}

// Users lists the users that have stored forecasts.
func (s *Service) Users(ctx context.Context) ([]int64, error) {
	users, err := s.store.ListForecastUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forecast users: %w", err)
	}
	return users, nil
}

// Summary lists the stored forecasts ordered by target date.
func (s *Service) Summary(ctx context.Context, userID int64) ([]core.TargetDateForecast, error) {
	forecasts, err := s.store.ListForecasts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list forecasts: %w", err)
	}
	return forecasts, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (core.TargetDateForecast, error) {
	return s.store.GetForecast(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteForecast(ctx, userID, id)
}

// DailyBalances projects the running balance for each day in [start, end].
func (s *Service) DailyBalances(ctx context.Context, userID int64, start, end core.Date) ([]DailyBalance, error) {
	today := s.Today()
	in, err := s.loadInput(ctx, userID, today, end)
	if err != nil {
		return nil, err
	}
	return s.calc.DailyBalances(in, start, end)
}
