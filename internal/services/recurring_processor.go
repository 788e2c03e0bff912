package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/forecast"
	"budgetcal/internal/storage"
)

// maxCatchUp bounds how many missed occurrences one expense may materialise
// in a single run.
const maxCatchUp = 366

// RecurringProcessor turns due recurring expenses into transactions
type RecurringProcessor struct {
	store     storage.RecurringStore
	publisher Publisher
}

// NewRecurringProcessor creates a new recurring expense processor
func NewRecurringProcessor(store storage.RecurringStore, publisher Publisher) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		publisher: publisher,
	}
}

// ProcessDue materialises every occurrence dated on or before now that has
// not been materialised yet, advancing each expense's next date past it.
// Expenses whose end date has passed are deactivated. It returns the number
// of transactions created.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	today := core.DateOf(now)

	due, err := p.store.ListDueRecurring(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list due recurring expenses: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring expenses",
		"due", len(due),
		"processing_date", today.String())

	created := 0
	touched := map[int64]bool{}
	for _, re := range due {
		history, err := p.store.ListHistory(ctx, re.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load recurring history",
				"recurring_id", re.ID,
				"error", err)
			continue
		}

		n, err := p.processExpense(ctx, forecast.Expense{RecurringExpense: re, History: history}, today)
		created += n
		if n > 0 || err == nil {
			touched[re.UserID] = true
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring expense",
				"recurring_id", re.ID,
				"user_id", re.UserID,
				"error", err)
		}
	}

	for userID := range touched {
		notify(ctx, p.publisher, userID, amqp.ReasonRecurringProcessed)
	}

	slog.InfoContext(ctx, "Recurring expense processing complete",
		"created", created,
		"total_checked", len(due))

	return created, nil
}

func (p *RecurringProcessor) processExpense(ctx context.Context, e forecast.Expense, today core.Date) (int, error) {
	created := 0
	for i := 0; i < maxCatchUp && !e.NextDate.After(today) && !ended(e.RecurringExpense); i++ {
		next, err := forecast.NextOccurrence(e.RecurringExpense, e.NextDate)
		if err != nil {
			return created, err
		}

		// Dates before the start date move the schedule without a transaction
		var tx *core.Transaction
		if !e.NextDate.Before(e.StartDate) {
			name, amount := e.Version(e.NextDate)
			tx = &core.Transaction{
				UserID:             e.UserID,
				Date:               e.NextDate,
				Amount:             amount,
				Description:        name,
				Source:             core.SourceRecurring,
				RecurringExpenseID: e.ID,
			}
		}

		if err := p.store.MaterializeOccurrence(ctx, e.ID, next, tx); err != nil {
			return created, fmt.Errorf("materialise %s: %w", e.NextDate, err)
		}
		if tx != nil {
			created++
			slog.InfoContext(ctx, "Created transaction from recurring expense",
				"recurring_id", e.ID,
				"transaction_id", tx.ID,
				"date", tx.Date.String(),
				"amount", core.FormatMoney(tx.Amount))
		}
		e.NextDate = next
	}

	if ended(e.RecurringExpense) {
		if err := p.store.DeactivateRecurring(ctx, e.UserID, e.ID); err != nil {
			return created, fmt.Errorf("deactivate ended expense: %w", err)
		}
		slog.InfoContext(ctx, "Recurring expense ended",
			"recurring_id", e.ID,
			"end_date", e.EndDate.String())
	}
	return created, nil
}

func ended(e core.RecurringExpense) bool {
	return !e.EndDate.IsEmpty() && e.NextDate.After(e.EndDate)
}
