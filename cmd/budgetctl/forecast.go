package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"budgetcal/internal/cli"
	"budgetcal/internal/core"
	"budgetcal/internal/worker"
)

var (
	flagName  string
	flagStart string
	flagEnd   string
	flagAll   bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <target-date>",
	Short: "Project the balance at a date and store the forecast",
	Args:  cobra.ExactArgs(1),
	RunE:  runForecast,
}

var forecastsCmd = &cobra.Command{
	Use:   "forecasts",
	Short: "List stored forecasts",
	Args:  cobra.NoArgs,
	RunE:  runForecasts,
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show the projected balance for each day of a range",
	Args:  cobra.NoArgs,
	RunE:  runDaily,
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Refresh stored forecasts and export them when a spreadsheet is configured",
	Args:  cobra.NoArgs,
	RunE:  runRecalculate,
}

func init() {
	forecastCmd.Flags().StringVar(&flagName, "name", "", "Forecast name")
	dailyCmd.Flags().StringVar(&flagStart, "start", "", "First day (YYYY-MM-DD, default today)")
	dailyCmd.Flags().StringVar(&flagEnd, "end", "", "Last day (YYYY-MM-DD, default start + 30 days)")
	recalculateCmd.Flags().BoolVar(&flagAll, "all", false, "Refresh every user with stored forecasts")
	rootCmd.AddCommand(forecastCmd, forecastsCmd, dailyCmd, recalculateCmd)
}

func runForecast(cmd *cobra.Command, args []string) error {
	target, err := core.ParseDate(args[0])
	if err != nil {
		return err
	}
	out, err := current.forecasts.ForecastToTargetDate(cmd.Context(), flagUser, target, flagName)
	if err != nil {
		return err
	}
	if ok, err := printJSON(out); ok || err != nil {
		return err
	}

	res := out.Breakdown
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  (#%d)", out.Forecast.Name, out.Forecast.ID)))
	fmt.Println(cli.RenderTable(cli.Table{
		Headers: []string{"", "Amount"},
		Numeric: []int{1},
		Rows: [][]string{
			{"Current balance (" + strconv.Itoa(res.AccountsUsed) + " accounts)", cli.Money(res.CurrentBalance)},
			{"Recurring expenses", cli.Money(res.RecurringTotal)},
			{"Known transactions", cli.Money(res.TransactionTotal)},
			{"Projected on " + res.Target.String(), cli.Money(res.ProjectedBalance)},
		},
	}))

	rows := make([][]string, 0, len(res.Occurrences))
	for _, o := range res.Occurrences {
		rows = append(rows, []string{o.Date.String(), o.Name, string(o.Frequency), cli.Money(o.Amount)})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Title:   "Recurring occurrences",
		Headers: []string{"Date", "Expense", "Frequency", "Amount"},
		Numeric: []int{3},
		Rows:    rows,
	}))

	if len(res.Transactions) > 0 {
		rows = rows[:0]
		for _, t := range res.Transactions {
			rows = append(rows, []string{t.Date.String(), t.Description, string(t.Source), cli.Money(t.Amount)})
		}
		fmt.Println(cli.RenderTable(cli.Table{
			Title:   "Future transactions",
			Headers: []string{"Date", "Description", "Source", "Amount"},
			Numeric: []int{3},
			Rows:    rows,
		}))
	}
	return nil
}

func runForecasts(cmd *cobra.Command, _ []string) error {
	list, err := current.forecasts.Summary(cmd.Context(), flagUser)
	if err != nil {
		return err
	}
	if ok, err := printJSON(list); ok || err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, f := range list {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Name,
			f.TargetDate.String(),
			cli.Money(f.ProjectedBalance),
			cli.Muted(f.LastCalculated.Local().Format("2006-01-02 15:04")),
		})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Title:   "Stored forecasts",
		Headers: []string{"ID", "Name", "Target", "Projected", "Calculated"},
		Numeric: []int{0, 3},
		Rows:    rows,
	}))
	return nil
}

func runDaily(cmd *cobra.Command, _ []string) error {
	start := current.forecasts.Today()
	if flagStart != "" {
		d, err := core.ParseDate(flagStart)
		if err != nil {
			return err
		}
		start = d
	}
	end := start.AddDays(30)
	if flagEnd != "" {
		d, err := core.ParseDate(flagEnd)
		if err != nil {
			return err
		}
		end = d
	}

	days, err := current.forecasts.DailyBalances(cmd.Context(), flagUser, start, end)
	if err != nil {
		return err
	}
	if ok, err := printJSON(days); ok || err != nil {
		return err
	}
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		change := ""
		if !d.Change.IsZero() {
			change = cli.Money(d.Change)
		}
		rows = append(rows, []string{d.Date.String(), change, cli.Money(d.Balance), cli.Muted(strings.Join(d.Items, ", "))})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Daily balances %s to %s", start, end),
		Headers: []string{"Date", "Change", "Balance", "Items"},
		Numeric: []int{1, 2},
		Rows:    rows,
	}))
	return nil
}

func runRecalculate(cmd *cobra.Command, _ []string) error {
	fw := worker.NewForecastWorker(current.forecasts, current.backend.Exporter, current.cfg.WorkerConcurrency)
	if flagAll {
		return fw.RecalculateAll(cmd.Context())
	}
	return fw.RecalculateUser(cmd.Context(), flagUser)
}
