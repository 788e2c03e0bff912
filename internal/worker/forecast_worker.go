package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/sheets"
)

// ForecastService is the part of forecast.Service the worker drives.
type ForecastService interface {
	Recalculate(ctx context.Context, userID int64) (int, error)
	Summary(ctx context.Context, userID int64) ([]core.TargetDateForecast, error)
	Users(ctx context.Context) ([]int64, error)
}

// DefaultConcurrency bounds how many users a full recalculation handles at once.
const DefaultConcurrency = 4

// ForecastWorker keeps stored forecasts current and optionally mirrors them
// to a spreadsheet.
type ForecastWorker struct {
	forecasts   ForecastService
	exporter    sheets.ForecastExporter
	concurrency int
}

// NewForecastWorker creates a worker. exporter may be nil.
func NewForecastWorker(forecasts ForecastService, exporter sheets.ForecastExporter, concurrency int) *ForecastWorker {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &ForecastWorker{
		forecasts:   forecasts,
		exporter:    exporter,
		concurrency: concurrency,
	}
}

// HandleRecalcMessage processes a single recalculation message from AMQP.
// A returned error requeues the message.
func (w *ForecastWorker) HandleRecalcMessage(ctx context.Context, msg *amqp.ForecastRecalcMessage) error {
	if msg.UserID <= 0 {
		slog.WarnContext(ctx, "Dropping recalc message without user", "message_id", msg.ID)
		return nil
	}
	return w.RecalculateUser(ctx, msg.UserID)
}

// RecalculateUser refreshes the user's forecasts and exports them. A user
// without any usable account has nothing to refresh and is not an error.
func (w *ForecastWorker) RecalculateUser(ctx context.Context, userID int64) error {
	n, err := w.forecasts.Recalculate(ctx, userID)
	if err != nil {
		var missing *core.MissingBalanceError
		if errors.As(err, &missing) {
			slog.WarnContext(ctx, "Skipping recalculation for user without balance", "user_id", userID)
			return nil
		}
		return fmt.Errorf("recalculate forecasts for user %d: %w", userID, err)
	}

	slog.InfoContext(ctx, "Forecasts recalculated", "user_id", userID, "count", n)

	if w.exporter == nil {
		return nil
	}
	forecasts, err := w.forecasts.Summary(ctx, userID)
	if err != nil {
		return fmt.Errorf("load forecasts for export: %w", err)
	}
	ref, err := w.exporter.ExportForecasts(ctx, userID, forecasts)
	if err != nil {
		return fmt.Errorf("export forecasts for user %d: %w", userID, err)
	}
	slog.InfoContext(ctx, "Forecasts exported", "user_id", userID, "ref", ref)
	return nil
}

// RecalculateAll refreshes every user with stored forecasts, a bounded number
// at a time. Failures are logged per user; the first one is returned after
// every user has been attempted.
func (w *ForecastWorker) RecalculateAll(ctx context.Context) error {
	users, err := w.forecasts.Users(ctx)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Recalculating all forecasts", "users", len(users))

	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := w.RecalculateUser(ctx, userID); err != nil {
				slog.ErrorContext(ctx, "Failed to recalculate user", "user_id", userID, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
