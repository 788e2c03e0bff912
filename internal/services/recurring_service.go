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

// RecurringService manages recurring expenses and their amount history.
type RecurringService struct {
	store     storage.RecurringStore
	publisher Publisher
	now       func() time.Time
}

func NewRecurringService(store storage.RecurringStore, publisher Publisher) *RecurringService {
	return &RecurringService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithClock replaces the time source, mainly for tests.
func (s *RecurringService) WithClock(now func() time.Time) *RecurringService {
	s.now = now
	return s
}

// Create stores a new active expense. A missing start date defaults to the
// next date and a missing next date to the start date; when both are missing
// the expense starts today.
func (s *RecurringService) Create(ctx context.Context, e core.RecurringExpense) (core.RecurringExpense, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Amount = core.RoundMoney(e.Amount)
	switch {
	case e.StartDate.IsEmpty() && e.NextDate.IsEmpty():
		e.StartDate = core.DateOf(s.now())
		e.NextDate = e.StartDate
	case e.StartDate.IsEmpty():
		e.StartDate = e.NextDate
	case e.NextDate.IsEmpty():
		e.NextDate = e.StartDate
	}
	e.IsActive = true
	if err := e.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}

	if err := s.store.CreateRecurring(ctx, &e); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring expense: %w", err)
	}

	slog.InfoContext(ctx, "Recurring expense created",
		"user_id", e.UserID,
		"recurring_id", e.ID,
		"name", e.Name,
		"amount", core.FormatMoney(e.Amount),
		"frequency", e.Frequency)

	notify(ctx, s.publisher, e.UserID, amqp.ReasonRecurringChanged)
	return e, nil
}

// UpdateAmount changes the amount from effective onwards, keeping earlier
// occurrences at their old amount. A zero effective date means today. A date
// before the start date is moved to the start date so the change outranks the
// creation entry.
func (s *RecurringService) UpdateAmount(ctx context.Context, userID, id int64, amount decimal.Decimal, effective core.Date) (core.RecurringExpense, error) {
	amount = core.RoundMoney(amount)
	if amount.IsZero() {
		return core.RecurringExpense{}, core.ErrInvalidAmount
	}
	if effective.IsEmpty() {
		effective = core.DateOf(s.now())
	}

	current, err := s.store.GetRecurring(ctx, userID, id)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring amount: %w", err)
	}
	if effective.Before(current.StartDate) {
		effective = current.StartDate
	}

	e, err := s.store.UpdateRecurringAmount(ctx, userID, id, amount, effective)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring amount: %w", err)
	}

	slog.InfoContext(ctx, "Recurring amount updated",
		"user_id", userID,
		"recurring_id", id,
		"amount", core.FormatMoney(amount),
		"effective_date", effective.String())

	notify(ctx, s.publisher, userID, amqp.ReasonRecurringChanged)
	return e, nil
}

// Deactivate stops the expense from producing further occurrences.
func (s *RecurringService) Deactivate(ctx context.Context, userID, id int64) error {
	if err := s.store.DeactivateRecurring(ctx, userID, id); err != nil {
		return fmt.Errorf("deactivate recurring expense: %w", err)
	}
	slog.InfoContext(ctx, "Recurring expense deactivated", "user_id", userID, "recurring_id", id)
	notify(ctx, s.publisher, userID, amqp.ReasonRecurringChanged)
	return nil
}

func (s *RecurringService) List(ctx context.Context, userID int64) ([]core.RecurringExpense, error) {
	out, err := s.store.ListActiveRecurring(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	return out, nil
}

// History returns the amount history of an expense owned by userID.
func (s *RecurringService) History(ctx context.Context, userID, id int64) ([]core.RecurringExpenseHistory, error) {
	if _, err := s.store.GetRecurring(ctx, userID, id); err != nil {
		return nil, err
	}
	out, err := s.store.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list recurring history: %w", err)
	}
	return out, nil
}
