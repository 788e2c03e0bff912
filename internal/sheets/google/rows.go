package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

var forecastHeader = []any{"Name", "Target date", "Projected balance", "Recurring expenses", "Recurring total", "Last calculated"}

var snapshotHeader = []any{"Forecast", "Expense", "Frequency", "Amount", "Occurrences", "Total"}

// forecastRows renders one summary row per forecast in the given order,
// followed by a blank row and the per-expense snapshot rows.
func forecastRows(forecasts []core.TargetDateForecast) [][]any {
	rows := [][]any{forecastHeader}
	var details [][]any
	for _, f := range forecasts {
		totals := make([]decimal.Decimal, 0, len(f.Snapshot))
		for _, s := range f.Snapshot {
			totals = append(totals, s.Total)
			details = append(details, []any{
				f.Name,
				s.Name,
				string(s.Frequency),
				core.FormatMoney(s.Amount),
				s.Occurrences,
				core.FormatMoney(s.Total),
			})
		}
		rows = append(rows, []any{
			f.Name,
			f.TargetDate.String(),
			core.FormatMoney(f.ProjectedBalance),
			len(f.Snapshot),
			core.FormatMoney(core.SumAmounts(totals...)),
			formatTimestamp(f.LastCalculated),
		})
	}
	if len(details) == 0 {
		return rows
	}
	rows = append(rows, []any{})
	rows = append(rows, snapshotHeader)
	return append(rows, details...)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// userSheetName gives every user a tab of their own, e.g. "Forecasts 12".
func userSheetName(base string, userID int64) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultSheetName
	}
	return fmt.Sprintf("%s %d", base, userID)
}
