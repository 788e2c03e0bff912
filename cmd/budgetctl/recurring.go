package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"budgetcal/internal/cli"
	"budgetcal/internal/core"
	"budgetcal/internal/services"
)

var (
	flagAmount    string
	flagFrequency string
	flagNext      string
	flagEffective string
	flagNotes     string
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Manage recurring expenses",
}

var recurringListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active recurring expenses",
	Args:  cobra.NoArgs,
	RunE:  runRecurringList,
}

var recurringAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a recurring expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecurringAdd,
}

var recurringSetAmountCmd = &cobra.Command{
	Use:     "set-amount <id> <amount>",
	Short:   "Change the amount from an effective date onwards",
	Example: "  budgetctl recurring set-amount --effective 2025-07-01 4 -- -89.95",
	Args:    cobra.ExactArgs(2),
	RunE:    runRecurringSetAmount,
}

var recurringHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the amount history of a recurring expense",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecurringHistory,
}

var processRecurringCmd = &cobra.Command{
	Use:   "process-recurring",
	Short: "Materialize every due recurring occurrence as a transaction",
	Args:  cobra.NoArgs,
	RunE:  runProcessRecurring,
}

func init() {
	recurringAddCmd.Flags().StringVar(&flagAmount, "amount", "", "Amount, negative for expenses (required)")
	recurringAddCmd.Flags().StringVar(&flagFrequency, "frequency", "monthly", "weekly, fortnightly, monthly, quarterly or yearly")
	recurringAddCmd.Flags().StringVar(&flagNext, "next", "", "Next due date (YYYY-MM-DD)")
	recurringAddCmd.Flags().StringVar(&flagStart, "start", "", "Start date (YYYY-MM-DD)")
	recurringAddCmd.Flags().StringVar(&flagEnd, "end", "", "End date (YYYY-MM-DD)")
	recurringAddCmd.Flags().StringVar(&flagNotes, "notes", "", "Free-form notes")
	_ = recurringAddCmd.MarkFlagRequired("amount")
	recurringSetAmountCmd.Flags().StringVar(&flagEffective, "effective", "", "Effective date (YYYY-MM-DD, default today)")

	recurringCmd.AddCommand(recurringListCmd, recurringAddCmd, recurringSetAmountCmd, recurringHistoryCmd)
	rootCmd.AddCommand(recurringCmd, processRecurringCmd)
}

func optionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

func runRecurringList(cmd *cobra.Command, _ []string) error {
	list, err := current.recurring.List(cmd.Context(), flagUser)
	if err != nil {
		return err
	}
	if ok, err := printJSON(list); ok || err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Name,
			string(e.Frequency),
			e.NextDate.String(),
			e.EndDate.String(),
			cli.Money(e.Amount),
		})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Title:   "Recurring expenses",
		Headers: []string{"ID", "Name", "Frequency", "Next", "Ends", "Amount"},
		Numeric: []int{0, 5},
		Rows:    rows,
	}))
	return nil
}

func runRecurringAdd(cmd *cobra.Command, args []string) error {
	amount, err := core.ParseAmount(flagAmount)
	if err != nil {
		return err
	}
	freq, err := core.ParseFrequency(flagFrequency)
	if err != nil {
		return err
	}
	next, err := optionalDate(flagNext)
	if err != nil {
		return err
	}
	start, err := optionalDate(flagStart)
	if err != nil {
		return err
	}
	end, err := optionalDate(flagEnd)
	if err != nil {
		return err
	}

	e, err := current.recurring.Create(cmd.Context(), core.RecurringExpense{
		UserID:    flagUser,
		Name:      args[0],
		Amount:    amount,
		Frequency: freq,
		NextDate:  next,
		StartDate: start,
		EndDate:   end,
		Notes:     flagNotes,
	})
	if err != nil {
		return err
	}
	if ok, err := printJSON(e); ok || err != nil {
		return err
	}
	fmt.Printf("Created recurring expense #%d %s %s %s, next due %s\n",
		e.ID, e.Name, cli.Money(e.Amount), e.Frequency, e.NextDate)
	return nil
}

func runRecurringSetAmount(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return err
	}
	effective, err := optionalDate(flagEffective)
	if err != nil {
		return err
	}
	e, err := current.recurring.UpdateAmount(cmd.Context(), flagUser, id, amount, effective)
	if err != nil {
		return err
	}
	if ok, err := printJSON(e); ok || err != nil {
		return err
	}
	fmt.Printf("Recurring expense #%d now %s\n", e.ID, cli.Money(e.Amount))
	return nil
}

func runRecurringHistory(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	hist, err := current.recurring.History(cmd.Context(), flagUser, id)
	if err != nil {
		return err
	}
	if ok, err := printJSON(hist); ok || err != nil {
		return err
	}
	rows := make([][]string, 0, len(hist))
	for _, h := range hist {
		rows = append(rows, []string{h.EffectiveDate.String(), h.Name, string(h.Frequency), cli.Money(h.Amount)})
	}
	fmt.Println(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("History of #%d", id),
		Headers: []string{"Effective", "Name", "Frequency", "Amount"},
		Numeric: []int{3},
		Rows:    rows,
	}))
	return nil
}

func runProcessRecurring(cmd *cobra.Command, _ []string) error {
	processor := services.NewRecurringProcessor(current.backend.Store, current.backend.Publisher())
	n, err := processor.ProcessDue(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Created %d transactions from due recurring expenses\n", n)
	return nil
}
