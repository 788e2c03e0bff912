package main

import (
	"context"
	"os"
	"time"

	"budgetcal/internal/cli"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/worker"
)

func main() {
	cfg, logger := cli.Init(log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	if res.AMQP == nil {
		logger.Info("AMQP disabled - forecasts will not be refreshed after materializing")
	}
	processor := services.NewRecurringProcessor(res.Store, res.Publisher())

	job := worker.Job{
		Name: "process-recurring",
		Spec: cfg.RecurringCron,
		Run: func(ctx context.Context) error {
			count, err := processor.ProcessDue(ctx, time.Now())
			if err != nil {
				return err
			}
			logger.Info("Processed due recurring expenses", "transactions_created", count)
			return nil
		},
	}
	scheduler := worker.NewScheduler(job)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
	})

	logger.Info("Recurring expense processor configured",
		"spec", cfg.RecurringCron,
		"backend", cfg.DataBackend)

	// Run initial processing on startup
	scheduler.RunNow(ctx, job)

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
