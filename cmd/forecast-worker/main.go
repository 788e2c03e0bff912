package main

import (
	"context"
	"os"
	"time"

	"budgetcal/internal/cli"
	"budgetcal/internal/forecast"
	"budgetcal/internal/log"
	"budgetcal/internal/worker"
)

func main() {
	cfg, logger := cli.Init(log.ComponentWorker)
	logger.Info("Starting forecast-worker")

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	forecasts := forecast.NewService(res.Store, forecast.NewCalculator(cfg.ForecastMaxHorizonDays))
	fw := worker.NewForecastWorker(forecasts, res.Exporter, cfg.WorkerConcurrency)

	scheduler := worker.NewScheduler(worker.Job{
		Name: "recalculate-forecasts",
		Spec: cfg.ForecastCron,
		Run:  fw.RecalculateAll,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	if res.AMQP != nil {
		go func() {
			logger.Info("Consuming forecast recalculation messages", "queue", cfg.AMQPQueue)
			if err := res.AMQP.ConsumeForecastRecalc(ctx, fw.HandleRecalcMessage); err != nil && ctx.Err() == nil {
				logger.Error("AMQP consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("AMQP disabled - forecasts refresh on schedule only", "spec", cfg.ForecastCron)
	}

	// Catch up on anything that changed while the worker was down.
	start := time.Now()
	if err := fw.RecalculateAll(ctx); err != nil {
		logger.Error("Initial recalculation failed", "error", err)
	} else {
		logger.Info("Initial recalculation complete", "duration", time.Since(start))
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Forecast-worker shutdown complete")
}
