package forecast

import (
	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

// DailyBalance is the projected end-of-day balance for one date.
type DailyBalance struct {
	Date    core.Date       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
	Change  decimal.Decimal `json:"change"`
	Items   []string        `json:"items,omitempty"`
}

// DailyBalances projects the running balance for each day in [start, end].
// in.Target is ignored and replaced with end. start may not precede in.Today;
// Today itself reports the current balance with no change.
func (c Calculator) DailyBalances(in Input, start, end core.Date) ([]DailyBalance, error) {
	if start.Before(in.Today) {
		return nil, &core.InvalidDateError{Target: start, Today: in.Today}
	}
	if end.Before(start) {
		return nil, &core.InvalidDateError{Target: end, Today: start}
	}
	in.Target = end
	res, err := c.Calculate(in)
	if err != nil {
		return nil, err
	}

	changes := map[string]decimal.Decimal{}
	items := map[string][]string{}
	for _, o := range res.Occurrences {
		changes[o.Date.String()] = changes[o.Date.String()].Add(o.Amount)
		items[o.Date.String()] = append(items[o.Date.String()], o.Name)
	}
	for _, t := range res.Transactions {
		changes[t.Date.String()] = changes[t.Date.String()].Add(t.Amount)
		items[t.Date.String()] = append(items[t.Date.String()], t.Description)
	}

	balance := res.CurrentBalance
	var out []DailyBalance
	for day := in.Today; !day.After(end); day = day.AddDays(1) {
		change := changes[day.String()]
		balance = balance.Add(change)
		if day.Before(start) {
			continue
		}
		out = append(out, DailyBalance{
			Date:    day,
			Balance: core.RoundMoney(balance),
			Change:  core.RoundMoney(change),
			Items:   items[day.String()],
		})
	}
	return out, nil
}
