package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/core"
	"budgetcal/internal/storage/memory"
)

type published struct {
	UserID int64
	Reason string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) PublishForecastRecalc(_ context.Context, userID int64, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{UserID: userID, Reason: reason})
	return p.err
}

func (p *recordingPublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

var errBroker = errors.New("broker unavailable")

func d(s string) core.Date { return core.MustDate(s) }

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func clockAt(day string) func() time.Time {
	t := d(day).Time.Add(8 * time.Hour)
	return func() time.Time { return t }
}

func createRecurring(t *testing.T, s *memory.Store, e core.RecurringExpense) core.RecurringExpense {
	t.Helper()
	if e.UserID == 0 {
		e.UserID = 1
	}
	if e.StartDate.IsEmpty() {
		e.StartDate = e.NextDate
	}
	e.IsActive = true
	require.NoError(t, s.CreateRecurring(context.Background(), &e))
	return e
}
