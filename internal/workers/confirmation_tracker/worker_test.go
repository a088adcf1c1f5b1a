package confirmation_tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/umoja-exchange/settlement-service/internal/domain/services/deposit"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) RefreshPendingDeposits(ctx context.Context, source deposit.ConfirmationSource) (int, int, error) {
	args := m.Called(ctx, source)
	return args.Int(0), args.Int(1), args.Error(2)
}

type stubSource struct{}

func (stubSource) Confirmations(ctx context.Context, tokenSymbol, txHash string) (int64, error) {
	return 0, nil
}

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestWorker_RunOnce_PassesSourceToRefresher(t *testing.T) {
	refresher := new(mockRefresher)
	source := stubSource{}
	refresher.On("RefreshPendingDeposits", mock.Anything, source).Return(3, 1, nil).Once()

	worker := NewWorker(refresher, source, nil, testLogger())
	worker.RunOnce(context.Background())

	refresher.AssertExpectations(t)
}

func TestWorker_RunOnce_SurvivesRefreshError(t *testing.T) {
	refresher := new(mockRefresher)
	refresher.On("RefreshPendingDeposits", mock.Anything, mock.Anything).
		Return(0, 0, errors.New("db down")).Once()

	worker := NewWorker(refresher, stubSource{}, nil, testLogger())
	worker.RunOnce(context.Background())

	refresher.AssertExpectations(t)
}

func TestWorker_StartSweepsUntilStopped(t *testing.T) {
	sweeps := make(chan struct{}, 16)
	refresher := new(mockRefresher)
	refresher.On("RefreshPendingDeposits", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { sweeps <- struct{}{} }).
		Return(0, 0, nil)

	worker := NewWorker(refresher, stubSource{}, &Config{
		Interval:     10 * time.Millisecond,
		BatchTimeout: time.Second,
	}, testLogger())

	done := make(chan struct{})
	go func() {
		worker.Start(context.Background())
		close(done)
	}()

	// First sweep fires immediately, then the ticker takes over
	for i := 0; i < 3; i++ {
		select {
		case <-sweeps:
		case <-time.After(2 * time.Second):
			t.Fatal("expected a sweep before timeout")
		}
	}

	worker.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_StartStopsOnContextCancel(t *testing.T) {
	refresher := new(mockRefresher)
	refresher.On("RefreshPendingDeposits", mock.Anything, mock.Anything).Return(0, 0, nil)

	worker := NewWorker(refresher, stubSource{}, &Config{
		Interval:     50 * time.Millisecond,
		BatchTimeout: time.Second,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.BatchTimeout)
}
