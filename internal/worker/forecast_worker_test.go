package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	sheetsmem "budgetcal/internal/sheets/memory"
)

// MockForecastService is a mock implementation of ForecastService for testing
type MockForecastService struct {
	mock.Mock
}

func (m *MockForecastService) Recalculate(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockForecastService) Summary(ctx context.Context, userID int64) ([]core.TargetDateForecast, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]core.TargetDateForecast), args.Error(1)
}

func (m *MockForecastService) Users(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func TestHandleRecalcMessage_RecalculatesAndExports(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	exporter := sheetsmem.New()
	stored := []core.TargetDateForecast{{ID: 9, UserID: 3, Name: "Holiday", TargetDate: core.NewDate(2025, 12, 1)}}
	svc.On("Recalculate", ctx, int64(3)).Return(1, nil)
	svc.On("Summary", ctx, int64(3)).Return(stored, nil)

	w := NewForecastWorker(svc, exporter, 0)
	err := w.HandleRecalcMessage(ctx, amqp.NewForecastRecalcMessage(3, amqp.ReasonRecurringChanged))

	require.NoError(t, err)
	assert.Equal(t, stored, exporter.Exported(3))
	svc.AssertExpectations(t)
}

func TestHandleRecalcMessage_WithoutExporter(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	svc.On("Recalculate", ctx, int64(3)).Return(2, nil)

	w := NewForecastWorker(svc, nil, 1)
	require.NoError(t, w.HandleRecalcMessage(ctx, amqp.NewForecastRecalcMessage(3, amqp.ReasonScheduled)))
	svc.AssertNotCalled(t, "Summary", mock.Anything, mock.Anything)
}

func TestHandleRecalcMessage_DropsMessageWithoutUser(t *testing.T) {
	svc := new(MockForecastService)
	w := NewForecastWorker(svc, nil, 1)

	err := w.HandleRecalcMessage(context.Background(), &amqp.ForecastRecalcMessage{ID: "x"})

	assert.NoError(t, err)
	svc.AssertNotCalled(t, "Recalculate", mock.Anything, mock.Anything)
}

func TestHandleRecalcMessage_MissingBalanceIsNotRetried(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	svc.On("Recalculate", ctx, int64(5)).
		Return(0, errors.Join(errors.New("recalculate forecast 1"), &core.MissingBalanceError{UserID: 5}))

	w := NewForecastWorker(svc, sheetsmem.New(), 1)
	assert.NoError(t, w.HandleRecalcMessage(ctx, amqp.NewForecastRecalcMessage(5, amqp.ReasonBalanceChanged)))
}

func TestHandleRecalcMessage_FailureIsReturned(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	boom := errors.New("database is locked")
	svc.On("Recalculate", ctx, int64(5)).Return(0, boom)

	w := NewForecastWorker(svc, nil, 1)
	err := w.HandleRecalcMessage(ctx, amqp.NewForecastRecalcMessage(5, amqp.ReasonBalanceChanged))

	assert.ErrorIs(t, err, boom)
}

func TestRecalculateAll_AttemptsEveryUser(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	boom := errors.New("boom")
	svc.On("Users", ctx).Return([]int64{1, 2, 3}, nil)
	svc.On("Recalculate", ctx, int64(1)).Return(1, nil)
	svc.On("Recalculate", ctx, int64(2)).Return(0, boom)
	svc.On("Recalculate", ctx, int64(3)).Return(2, nil)

	w := NewForecastWorker(svc, nil, 2)
	err := w.RecalculateAll(ctx)

	assert.ErrorIs(t, err, boom)
	svc.AssertNumberOfCalls(t, "Recalculate", 3)
}

func TestRecalculateAll_UsersError(t *testing.T) {
	ctx := context.Background()
	svc := new(MockForecastService)
	svc.On("Users", ctx).Return(nil, errors.New("no db"))

	w := NewForecastWorker(svc, nil, 2)
	assert.Error(t, w.RecalculateAll(ctx))
}
