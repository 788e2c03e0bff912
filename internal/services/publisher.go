package services

import (
	"context"
	"log/slog"
)

// Publisher announces that a user's stored forecasts are stale.
// *amqp.Client implements it.
type Publisher interface {
	PublishForecastRecalc(ctx context.Context, userID int64, reason string) error
}

// notify publishes a recalculation request. Failures are logged and never
// fail the write that triggered them.
func notify(ctx context.Context, p Publisher, userID int64, reason string) {
	if p == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping forecast recalc message",
			"user_id", userID, "reason", reason)
		return
	}
	if err := p.PublishForecastRecalc(ctx, userID, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to publish forecast recalc message",
			"user_id", userID,
			"reason", reason,
			"error", err)
	}
}
