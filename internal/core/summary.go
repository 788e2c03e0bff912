package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// WeeklySummary aggregates the transactions of one Monday-based week.
type WeeklySummary struct {
	WeekStart  Date             `json:"week_start"`
	WeekEnd    Date             `json:"week_end"`
	Total      decimal.Decimal  `json:"total"`
	Expenses   decimal.Decimal  `json:"expenses"`
	Income     decimal.Decimal  `json:"income"`
	Extras     decimal.Decimal  `json:"extras"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// BudgetSummary is the income/expense split over an arbitrary range.
type BudgetSummary struct {
	Start      Date             `json:"start"`
	End        Date             `json:"end"`
	Income     decimal.Decimal  `json:"income"`
	Expenses   decimal.Decimal  `json:"expenses"`
	Net        decimal.Decimal  `json:"net"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// Uncategorized labels transactions without a category in summaries.
const Uncategorized = "Uncategorized"

// Summarize folds transactions into a BudgetSummary. Category names are
// resolved through names; unknown ids fall back to Uncategorized.
func Summarize(start, end Date, txs []Transaction, names map[int64]string) BudgetSummary {
	s := BudgetSummary{Start: start, End: end, Income: decimal.Zero, Expenses: decimal.Zero}
	totals := map[string]decimal.Decimal{}
	var order []string
	for _, t := range txs {
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		s.Count++
		if t.Amount.IsPositive() {
			s.Income = s.Income.Add(t.Amount)
		} else {
			s.Expenses = s.Expenses.Add(t.Amount)
		}
		name, ok := names[t.CategoryID]
		if !ok {
			name = Uncategorized
		}
		if _, seen := totals[name]; !seen {
			order = append(order, name)
		}
		totals[name] = totals[name].Add(t.Amount)
	}
	s.Net = s.Income.Add(s.Expenses)
	for _, name := range order {
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: name, Amount: totals[name]})
	}
	return s
}

// SummarizeWeek builds the WeeklySummary for the week starting at monday.
func SummarizeWeek(monday Date, txs []Transaction, names map[int64]string) WeeklySummary {
	b := Summarize(monday, monday.AddDays(6), txs, names)
	w := WeeklySummary{
		WeekStart:  monday,
		WeekEnd:    monday.AddDays(6),
		Total:      b.Net,
		Expenses:   b.Expenses,
		Income:     b.Income,
		Extras:     decimal.Zero,
		Count:      b.Count,
		ByCategory: b.ByCategory,
	}
	for _, t := range txs {
		if t.IsExtra && !t.Date.Before(monday) && !t.Date.After(w.WeekEnd) {
			w.Extras = w.Extras.Add(t.Amount)
		}
	}
	return w
}
