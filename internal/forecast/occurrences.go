package forecast

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

// Occurrence is one scheduled instance of a recurring expense.
type Occurrence struct {
	Date      core.Date       `json:"date"`
	ExpenseID int64           `json:"expense_id"`
	Name      string          `json:"name"`
	Frequency core.Frequency  `json:"frequency"`
	Amount    decimal.Decimal `json:"amount"`
}

// Expense pairs a recurring expense with its version history.
type Expense struct {
	core.RecurringExpense
	History []core.RecurringExpenseHistory
}

// Version returns the name and amount in force on day: the history row with
// the latest effective date on or before day. Before the first row takes
// effect the earliest row applies, and the expense itself when there is no
// history. Rows sharing an effective date resolve to the last one written.
func (e Expense) Version(day core.Date) (string, decimal.Decimal) {
	var best, first *core.RecurringExpenseHistory
	for i := range e.History {
		h := &e.History[i]
		if first == nil || h.EffectiveDate.Before(first.EffectiveDate) ||
			(h.EffectiveDate.Equal(first.EffectiveDate) && h.ID >= first.ID) {
			first = h
		}
		if h.EffectiveDate.After(day) {
			continue
		}
		if best == nil || h.EffectiveDate.After(best.EffectiveDate) ||
			(h.EffectiveDate.Equal(best.EffectiveDate) && h.ID >= best.ID) {
			best = h
		}
	}
	switch {
	case best != nil:
		return best.Name, best.Amount
	case first != nil:
		return first.Name, first.Amount
	}
	return e.Name, e.Amount
}

// Anchor returns the date the schedule of e is counted from: the start date
// when the next date lies on the schedule it defines, otherwise the next date.
// Counting from the start date keeps a 31st-of-month expense on the 31st after
// the processor has advanced it through a shorter month.
func Anchor(e core.RecurringExpense, sched Schedule) core.Date {
	if e.StartDate.IsEmpty() || e.StartDate.After(e.NextDate) {
		return e.NextDate
	}
	for n := 0; ; n++ {
		day := sched.Nth(e.StartDate, n)
		if day.Equal(e.NextDate) {
			return e.StartDate
		}
		if day.After(e.NextDate) {
			return e.NextDate
		}
	}
}

// NextOccurrence returns the first scheduled date of e strictly after day.
func NextOccurrence(e core.RecurringExpense, day core.Date) (core.Date, error) {
	sched, err := ScheduleFor(e.Frequency)
	if err != nil {
		return core.Date{}, err
	}
	anchor := Anchor(e, sched)
	for n := 0; ; n++ {
		next := sched.Nth(anchor, n)
		if next.After(day) && !next.Before(e.NextDate) {
			return next, nil
		}
	}
}

// Occurrences lists the dates in (after, until] on which e falls due, priced
// with the version in force on each date. Dates before the next date or the
// start date, and dates after the end date, are skipped.
func Occurrences(e Expense, after, until core.Date) ([]Occurrence, error) {
	if until.Before(after) || e.NextDate.IsEmpty() {
		return nil, nil
	}
	sched, err := ScheduleFor(e.Frequency)
	if err != nil {
		return nil, err
	}
	anchor := Anchor(e.RecurringExpense, sched)
	var out []Occurrence
	for n := 0; ; n++ {
		day := sched.Nth(anchor, n)
		if day.After(until) {
			break
		}
		if !e.EndDate.IsEmpty() && day.After(e.EndDate) {
			break
		}
		if day.Before(e.NextDate) || !day.After(after) || day.Before(e.StartDate) {
			continue
		}
		name, amount := e.Version(day)
		out = append(out, Occurrence{
			Date:      day,
			ExpenseID: e.ID,
			Name:      name,
			Frequency: e.Frequency,
			Amount:    amount,
		})
	}
	return out, nil
}

// Upcoming merges the occurrences of every active expense in (after, until],
// ordered by date then expense id.
func Upcoming(expenses []Expense, after, until core.Date) ([]Occurrence, error) {
	out := []Occurrence{}
	for _, e := range expenses {
		if !e.IsActive {
			continue
		}
		occ, err := Occurrences(e, after, until)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", e.ID, err)
		}
		out = append(out, occ...)
	}
	sortOccurrences(out)
	return out, nil
}

// Attach groups history rows under the expenses they belong to.
func Attach(expenses []core.RecurringExpense, history []core.RecurringExpenseHistory) []Expense {
	byExpense := make(map[int64][]core.RecurringExpenseHistory, len(expenses))
	for _, h := range history {
		byExpense[h.ExpenseID] = append(byExpense[h.ExpenseID], h)
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, Expense{RecurringExpense: e, History: byExpense[e.ID]})
	}
	return out
}

func sortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].Date.Equal(occ[j].Date) {
			return occ[i].Date.Before(occ[j].Date)
		}
		return occ[i].ExpenseID < occ[j].ExpenseID
	})
}
