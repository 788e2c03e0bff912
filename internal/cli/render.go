package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"budgetcal/internal/core"
)

var (
	ColorBorder = lipgloss.Color("#575653")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorGreen  = lipgloss.Color("#879A39")
	ColorRed    = lipgloss.Color("#D14D41")
	ColorMuted  = lipgloss.Color("#6F6E69")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(ColorText).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	creditStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	debitStyle  = lipgloss.NewStyle().Foreground(ColorRed)
)

// Table is a bordered text table. Columns listed in Numeric are right aligned.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Numeric []int
}

func RenderTitle(title string) string {
	return titleStyle.Render(title)
}

func RenderTable(t Table) string {
	numeric := make(map[int]bool, len(t.Numeric))
	for _, c := range t.Numeric {
		numeric[c] = true
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if numeric[col] {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	var b strings.Builder
	if t.Title != "" {
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	if len(t.Rows) == 0 {
		b.WriteString(mutedStyle.Render("  (none)"))
		return b.String()
	}
	b.WriteString(tbl.String())
	return b.String()
}

// Money formats an amount with two decimals, coloured by sign.
func Money(d decimal.Decimal) string {
	s := core.FormatMoney(d)
	switch d.Sign() {
	case -1:
		return debitStyle.Render(s)
	case 1:
		return creditStyle.Render(s)
	}
	return s
}

// Muted renders secondary text.
func Muted(s string) string {
	return mutedStyle.Render(s)
}
