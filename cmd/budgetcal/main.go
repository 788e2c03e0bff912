package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"budgetcal/internal/cli"
	"budgetcal/internal/forecast"
	apphttp "budgetcal/internal/http"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
)

func main() {
	cfg, logger := cli.Init(log.ComponentApp)

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	store := res.Store
	publisher := res.Publisher()
	srv := apphttp.NewServer(cfg.Addr(), apphttp.Services{
		Forecasts: forecast.NewService(store, forecast.NewCalculator(cfg.ForecastMaxHorizonDays)),
		Calendar:  services.NewCalendarService(store),
		Recurring: services.NewRecurringService(store, publisher),
		Ledger:    services.NewLedgerService(store, publisher),
		Store:     store,
	}, apphttp.Options{
		DefaultUserID:      cfg.DefaultUserID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		Logger:             logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting budgetcal server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
