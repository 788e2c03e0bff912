package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
	"budgetcal/internal/forecast"
	"budgetcal/internal/storage"
)

const (
	DefaultCalendarWeeks = 4
	MaxCalendarWeeks     = 12
	DefaultUpcomingDays  = 30
	MaxUpcomingDays      = 366
)

// CalendarStore is what CalendarService needs from a backend.
type CalendarStore interface {
	storage.TransactionStore
	storage.CategoryStore
	ListActiveRecurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error)
	ListHistoryByUser(ctx context.Context, userID int64) ([]core.RecurringExpenseHistory, error)
}

// CalendarDay holds the transactions booked on a date and, for dates after
// today, the recurring occurrences still expected.
type CalendarDay struct {
	Date         core.Date             `json:"date"`
	Transactions []core.Transaction    `json:"transactions"`
	Upcoming     []forecast.Occurrence `json:"upcoming"`
	Total        decimal.Decimal       `json:"total"`
}

type CalendarWeek struct {
	Summary core.WeeklySummary `json:"summary"`
	Days    []CalendarDay      `json:"days"`
}

// CalendarService serves the read side of the calendar and budget views.
type CalendarService struct {
	store CalendarStore
	now   func() time.Time
}

func NewCalendarService(store CalendarStore) *CalendarService {
	return &CalendarService{store: store, now: time.Now}
}

// WithClock replaces the time source, mainly for tests.
func (s *CalendarService) WithClock(now func() time.Time) *CalendarService {
	s.now = now
	return s
}

// Today is the date the calendar treats as the present.
func (s *CalendarService) Today() core.Date {
	return core.DateOf(s.now())
}

func (s *CalendarService) categoryNames(ctx context.Context, userID int64) (map[int64]string, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[int64]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (s *CalendarService) expenses(ctx context.Context, userID int64) ([]forecast.Expense, error) {
	active, err := s.store.ListActiveRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	history, err := s.store.ListHistoryByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring history: %w", err)
	}
	return forecast.Attach(active, history), nil
}

// Weeks returns weeks consecutive Monday-based weeks, the first one holding
// start. weeks is clamped to [1, MaxCalendarWeeks], zero meaning the default.
func (s *CalendarService) Weeks(ctx context.Context, userID int64, start core.Date, weeks int) ([]CalendarWeek, error) {
	if weeks <= 0 {
		weeks = DefaultCalendarWeeks
	}
	if weeks > MaxCalendarWeeks {
		weeks = MaxCalendarWeeks
	}
	today := core.DateOf(s.now())
	if start.IsEmpty() {
		start = today
	}
	first := start.WeekStart()
	last := first.AddDays(7*weeks - 1)

	txs, err := s.store.ListTransactions(ctx, userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	names, err := s.categoryNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	after := today
	if first.AddDays(-1).After(after) {
		after = first.AddDays(-1)
	}
	upcoming, err := forecast.Upcoming(expenses, after, last)
	if err != nil {
		return nil, err
	}

	byDay := map[string][]core.Transaction{}
	for _, t := range txs {
		byDay[t.Date.String()] = append(byDay[t.Date.String()], t)
	}
	occByDay := map[string][]forecast.Occurrence{}
	for _, o := range upcoming {
		occByDay[o.Date.String()] = append(occByDay[o.Date.String()], o)
	}

	out := make([]CalendarWeek, 0, weeks)
	for w := 0; w < weeks; w++ {
		monday := first.AddDays(7 * w)
		week := CalendarWeek{Summary: core.SummarizeWeek(monday, txs, names)}
		for d := 0; d < 7; d++ {
			day := monday.AddDays(d)
			cd := CalendarDay{
				Date:         day,
				Transactions: byDay[day.String()],
				Upcoming:     occByDay[day.String()],
				Total:        decimal.Zero,
			}
			for _, t := range cd.Transactions {
				cd.Total = cd.Total.Add(t.Amount)
			}
			week.Days = append(week.Days, cd)
		}
		out = append(out, week)
	}
	return out, nil
}

func (s *CalendarService) Transaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, userID, id)
}

func (s *CalendarService) Recurring(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	out, err := s.store.ListActiveRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return out, nil
}

// BudgetSummary totals income and expenses in [start, end].
func (s *CalendarService) BudgetSummary(ctx context.Context, userID int64, start, end core.Date) (core.BudgetSummary, error) {
	if end.Before(start) {
		return core.BudgetSummary{}, core.ErrInvalidDateRange
	}
	txs, err := s.store.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return core.BudgetSummary{}, fmt.Errorf("list transactions: %w", err)
	}
	names, err := s.categoryNames(ctx, userID)
	if err != nil {
		return core.BudgetSummary{}, err
	}
	return core.Summarize(start, end, txs, names), nil
}

// Upcoming lists recurring occurrences from today through the next days days.
func (s *CalendarService) Upcoming(ctx context.Context, userID int64, days int) ([]forecast.Occurrence, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	if days > MaxUpcomingDays {
		days = MaxUpcomingDays
	}
	expenses, err := s.expenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := core.DateOf(s.now())
	return forecast.Upcoming(expenses, today.AddDays(-1), today.AddDays(days))
}
