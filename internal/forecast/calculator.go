package forecast

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

// DefaultMaxHorizonDays bounds how far ahead a projection may look.
const DefaultMaxHorizonDays = 3660

// ErrHorizonTooFar is returned when the target is beyond the configured horizon.
var ErrHorizonTooFar = errors.New("target date is too far in the future")

// Input is everything a projection depends on. It is plain data so that a
// calculation is deterministic and can be repeated.
type Input struct {
	UserID       int64
	Today        core.Date
	Target       core.Date
	Accounts     []core.Account
	Expenses     []Expense
	Transactions []core.Transaction
}

// TransactionLine is a known future transaction applied to the projection.
type TransactionLine struct {
	ID          int64                  `json:"id"`
	Date        core.Date              `json:"date"`
	Description string                 `json:"description"`
	Source      core.TransactionSource `json:"source"`
	Amount      decimal.Decimal        `json:"amount"`
}

// Result is the projected balance with the breakdown that produced it.
type Result struct {
	UserID           int64                  `json:"user_id"`
	Today            core.Date              `json:"today"`
	Target           core.Date              `json:"target_date"`
	AccountsUsed     int                    `json:"accounts_used"`
	CurrentBalance   decimal.Decimal        `json:"current_balance"`
	RecurringTotal   decimal.Decimal        `json:"recurring_total"`
	TransactionTotal decimal.Decimal        `json:"transaction_total"`
	ProjectedBalance decimal.Decimal        `json:"projected_balance"`
	Occurrences      []Occurrence           `json:"occurrences"`
	Transactions     []TransactionLine      `json:"transactions"`
	Snapshot         []core.ExpenseSnapshot `json:"recurring_expenses_snapshot"`
}

// Calculator computes projections. The zero value uses DefaultMaxHorizonDays.
type Calculator struct {
	MaxHorizonDays int
}

func NewCalculator(maxHorizonDays int) Calculator {
	return Calculator{MaxHorizonDays: maxHorizonDays}
}

// Calculate projects the balance at in.Target.
//
// The current balance is the sum of active accounts flagged for inclusion.
// Each active expense contributes its occurrences in (Today, Target]. Future
// transactions in the same window are added unless they were generated from
// a recurring expense, since those are already counted as occurrences.
func (c Calculator) Calculate(in Input) (Result, error) {
	if in.Target.Before(in.Today) {
		return Result{}, &core.InvalidDateError{Target: in.Target, Today: in.Today}
	}
	horizon := c.MaxHorizonDays
	if horizon <= 0 {
		horizon = DefaultMaxHorizonDays
	}
	if in.Today.DaysUntil(in.Target) > horizon {
		return Result{}, fmt.Errorf("%w: %d days (max %d)", ErrHorizonTooFar, in.Today.DaysUntil(in.Target), horizon)
	}

	res := Result{
		UserID:           in.UserID,
		Today:            in.Today,
		Target:           in.Target,
		CurrentBalance:   decimal.Zero,
		RecurringTotal:   decimal.Zero,
		TransactionTotal: decimal.Zero,
		Occurrences:      []Occurrence{},
		Transactions:     []TransactionLine{},
		Snapshot:         []core.ExpenseSnapshot{},
	}

	for _, a := range in.Accounts {
		if !a.IsActive || !a.IncludeInCalculations {
			continue
		}
		res.AccountsUsed++
		res.CurrentBalance = res.CurrentBalance.Add(a.Balance)
	}
	if res.AccountsUsed == 0 {
		return Result{}, &core.MissingBalanceError{UserID: in.UserID}
	}
	res.CurrentBalance = core.RoundMoney(res.CurrentBalance)

	for _, e := range in.Expenses {
		if !e.IsActive {
			continue
		}
		occ, err := Occurrences(e, in.Today, in.Target)
		if err != nil {
			return Result{}, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		total := decimal.Zero
		for _, o := range occ {
			total = total.Add(o.Amount)
		}
		res.Occurrences = append(res.Occurrences, occ...)
		res.RecurringTotal = res.RecurringTotal.Add(total)
		res.Snapshot = append(res.Snapshot, snapshotOf(e, in.Today, len(occ), total))
	}
	sortOccurrences(res.Occurrences)
	sort.SliceStable(res.Snapshot, func(i, j int) bool {
		return res.Snapshot[i].ExpenseID < res.Snapshot[j].ExpenseID
	})

	for _, t := range in.Transactions {
		if !countsTowardProjection(t, in.Today, in.Target) {
			continue
		}
		res.TransactionTotal = res.TransactionTotal.Add(t.Amount)
		res.Transactions = append(res.Transactions, TransactionLine{
			ID:          t.ID,
			Date:        t.Date,
			Description: t.Description,
			Source:      t.Source,
			Amount:      t.Amount,
		})
	}
	sort.SliceStable(res.Transactions, func(i, j int) bool {
		return res.Transactions[i].Date.Before(res.Transactions[j].Date)
	})

	res.ProjectedBalance = core.RoundMoney(res.CurrentBalance.Add(res.RecurringTotal).Add(res.TransactionTotal))
	return res, nil
}

func countsTowardProjection(t core.Transaction, today, target core.Date) bool {
	if t.Source == core.SourceRecurring {
		return false
	}
	return t.Date.Between(today, target)
}

// snapshotOf freezes e with the amount in force on the calculation date.
func snapshotOf(e Expense, today core.Date, count int, total decimal.Decimal) core.ExpenseSnapshot {
	name, amount := e.Version(today)
	return core.ExpenseSnapshot{
		ExpenseID:   e.ID,
		Name:        name,
		Amount:      amount,
		Frequency:   e.Frequency,
		NextDate:    e.NextDate,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		Occurrences: count,
		Total:       total,
	}
}
