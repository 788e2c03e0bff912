// Package memory is an in-process ForecastExporter for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetcal/internal/core"
	ports "budgetcal/internal/sheets"
)

var _ ports.ForecastExporter = (*Exporter)(nil)

type Exporter struct {
	mu      sync.Mutex
	exports map[int64][]core.TargetDateForecast
	count   int
}

func New() *Exporter {
	return &Exporter{exports: map[int64][]core.TargetDateForecast{}}
}

// ExportForecasts keeps a copy of the forecasts, replacing the previous
// export of the same user.
func (e *Exporter) ExportForecasts(_ context.Context, userID int64, forecasts []core.TargetDateForecast) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports[userID] = append([]core.TargetDateForecast(nil), forecasts...)
	e.count++
	return fmt.Sprintf("mem:%d:%d", userID, e.count), nil
}

// Exported returns the last export of userID.
func (e *Exporter) Exported(userID int64) []core.TargetDateForecast {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.TargetDateForecast(nil), e.exports[userID]...)
}

// Count is the number of exports performed.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
