package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budgetcal/internal/backend"
	"budgetcal/internal/cli"
	"budgetcal/internal/config"
	"budgetcal/internal/forecast"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
)

var (
	flagUser int64
	flagJSON bool
)

// app is the wiring shared by every subcommand, built in PersistentPreRunE.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	backend   *backend.Result
	forecasts *forecast.Service
	recurring *services.RecurringService
}

var current *app

// openBackend is replaced in tests to share one store across invocations.
var openBackend = cli.OpenBackend

var rootCmd = &cobra.Command{
	Use:           "budgetctl",
	Short:         "Balance forecasting from the command line",
	Long:          "Project account balances to a date, inspect daily balances and manage recurring expenses.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		lc := cfg.LoggerConfig(log.ComponentCLI)
		lc.Output = os.Stderr
		logger := log.New(lc)
		log.SetDefault(logger)

		res, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		if flagUser == 0 {
			flagUser = cfg.DefaultUserID
		}
		current = &app{
			cfg:       cfg,
			logger:    logger,
			backend:   res,
			forecasts: forecast.NewService(res.Store, forecast.NewCalculator(cfg.ForecastMaxHorizonDays)),
			recurring: services.NewRecurringService(res.Store, res.Publisher()),
		}
		return nil
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if current != nil {
			return current.backend.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Int64VarP(&flagUser, "user", "u", 0, "User id (defaults to DEFAULT_USER_ID)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// printJSON writes v as indented JSON and reports whether --json was set.
func printJSON(v any) (bool, error) {
	if !flagJSON {
		return false, nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
