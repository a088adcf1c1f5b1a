package deposit_sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

type mockDepositRepo struct {
	mock.Mock
}

func (m *mockDepositRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*entities.Deposit, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Deposit), args.Error(1)
}

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

func TestWorker_RunOnce_UsesStalenessCutoff(t *testing.T) {
	repo := new(mockDepositRepo)
	var gotCutoff time.Time
	repo.On("ListPendingOlderThan", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) { gotCutoff = args.Get(1).(time.Time) }).
		Return([]*entities.Deposit{}, nil).Once()

	worker := NewWorker(repo, "0 * * * *", 24, testLogger())
	worker.RunOnce(context.Background())

	repo.AssertExpectations(t)
	wantCutoff := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, gotCutoff, 5*time.Second)
}

func TestWorker_RunOnce_ReportsStuckDeposits(t *testing.T) {
	stale := &entities.Deposit{
		ID:            uuid.New(),
		TxHash:        "0xstuck",
		TokenSymbol:   "USDC",
		Chain:         entities.ChainEVM,
		Confirmations: 4,
		Status:        entities.DepositStatusPending,
		DetectedAt:    time.Now().Add(-30 * time.Hour),
	}
	repo := new(mockDepositRepo)
	repo.On("ListPendingOlderThan", mock.Anything, mock.Anything).
		Return([]*entities.Deposit{stale}, nil).Once()

	worker := NewWorker(repo, "0 * * * *", 24, testLogger())
	worker.RunOnce(context.Background())

	// The sweep only reports; the record must stay pending
	repo.AssertExpectations(t)
	assert.Equal(t, entities.DepositStatusPending, stale.Status)
}

func TestWorker_RunOnce_SurvivesRepositoryError(t *testing.T) {
	repo := new(mockDepositRepo)
	repo.On("ListPendingOlderThan", mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()

	worker := NewWorker(repo, "0 * * * *", 24, testLogger())
	worker.RunOnce(context.Background())

	repo.AssertExpectations(t)
}

func TestWorker_StartRejectsBadSchedule(t *testing.T) {
	worker := NewWorker(new(mockDepositRepo), "not a cron expr", 24, testLogger())
	err := worker.Start()
	require.Error(t, err)
}
