package sheets

import (
	"context"

	"budgetcal/internal/core"
)

// Ports for outbound adapters.
type (
	// ForecastExporter publishes a user's stored forecasts to an external
	// sheet, replacing whatever was exported before.
	ForecastExporter interface {
		ExportForecasts(ctx context.Context, userID int64, forecasts []core.TargetDateForecast) (ref string, err error)
	}
)
