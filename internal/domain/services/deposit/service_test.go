package deposit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umoja-exchange/settlement-service/internal/domain/entities"
	domainerrors "github.com/umoja-exchange/settlement-service/internal/domain/errors"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New("error", "test")
}

type mockDepositStore struct {
	mock.Mock
}

func (m *mockDepositStore) Create(ctx context.Context, deposit *entities.Deposit) error {
	args := m.Called(ctx, deposit)
	return args.Error(0)
}

func (m *mockDepositStore) GetByTxHash(ctx context.Context, txHash string) (*entities.Deposit, error) {
	args := m.Called(ctx, txHash)
	if d := args.Get(0); d != nil {
		return d.(*entities.Deposit), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDepositStore) ListByStatus(ctx context.Context, status entities.DepositStatus) ([]*entities.Deposit, error) {
	args := m.Called(ctx, status)
	if d := args.Get(0); d != nil {
		return d.([]*entities.Deposit), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDepositStore) ListRecent(ctx context.Context, status entities.DepositStatus, limit int) ([]*entities.Deposit, error) {
	args := m.Called(ctx, status, limit)
	if d := args.Get(0); d != nil {
		return d.([]*entities.Deposit), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDepositStore) UpdateConfirmations(ctx context.Context, id uuid.UUID, confirmations int64) (bool, error) {
	args := m.Called(ctx, id, confirmations)
	return args.Bool(0), args.Error(1)
}

func (m *mockDepositStore) MarkConfirmedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, confirmedAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, confirmedAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockDepositStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockWalletStore struct {
	mock.Mock
}

func (m *mockWalletStore) GetAddressOwner(ctx context.Context, tokenSymbol, address string) (*entities.UserWallet, error) {
	args := m.Called(ctx, tokenSymbol, address)
	if w := args.Get(0); w != nil {
		return w.(*entities.UserWallet), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWalletStore) CreditBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, tokenSymbol string, amount decimal.Decimal) error {
	args := m.Called(ctx, tx, userID, tokenSymbol, amount)
	return args.Error(0)
}

type recordingNotifier struct {
	detected  int
	confirmed int
	failed    int
}

func (n *recordingNotifier) NotifyDepositDetected(context.Context, *entities.Deposit)  { n.detected++ }
func (n *recordingNotifier) NotifyDepositConfirmed(context.Context, *entities.Deposit) { n.confirmed++ }
func (n *recordingNotifier) NotifyDepositFailed(context.Context, *entities.Deposit)    { n.failed++ }

func validEvent() *entities.DepositEvent {
	return &entities.DepositEvent{
		TxHash:        "0xabc",
		ToAddress:     "0xdead",
		FromAddress:   "0xbeef",
		Amount:        decimal.NewFromInt(100),
		TokenSymbol:   "ETH",
		Chain:         entities.ChainEVM,
		BlockNumber:   100,
		Confirmations: 1,
		Timestamp:     time.Now(),
	}
}

// Event validation runs before any repository access, so a service without
// dependencies is enough to exercise the rejection paths.
func TestProcessDeposit_RejectsInvalidEvents(t *testing.T) {
	svc := NewService(nil, nil, nil, config.ChainsConfig{}, nil, testLogger())

	tests := []struct {
		name   string
		mutate func(*entities.DepositEvent)
	}{
		{"missing tx hash", func(e *entities.DepositEvent) { e.TxHash = "" }},
		{"missing to address", func(e *entities.DepositEvent) { e.ToAddress = "" }},
		{"missing from address", func(e *entities.DepositEvent) { e.FromAddress = "" }},
		{"missing token symbol", func(e *entities.DepositEvent) { e.TokenSymbol = "" }},
		{"zero amount", func(e *entities.DepositEvent) { e.Amount = decimal.Zero }},
		{"negative amount", func(e *entities.DepositEvent) { e.Amount = decimal.NewFromInt(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(event)
			err := svc.ProcessDeposit(context.Background(), event)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "validate event")
		})
	}
}

// A transaction hash that is already recorded must never produce a second
// record, whatever its current status.
func TestProcessDeposit_DuplicateHashIsIgnored(t *testing.T) {
	depositStore := &mockDepositStore{}
	existing := &entities.Deposit{
		ID:     uuid.New(),
		TxHash: "0xabc",
		Status: entities.DepositStatusConfirmed,
	}
	depositStore.On("GetByTxHash", mock.Anything, "0xabc").Return(existing, nil)

	notifier := &recordingNotifier{}
	svc := NewService(depositStore, &mockWalletStore{}, nil, config.ChainsConfig{}, notifier, testLogger())

	err := svc.ProcessDeposit(context.Background(), validEvent())

	assert.NoError(t, err)
	depositStore.AssertExpectations(t)
	depositStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Zero(t, notifier.detected)
}

func TestProcessDeposit_UnregisteredAddressIsDiscarded(t *testing.T) {
	depositStore := &mockDepositStore{}
	depositStore.On("GetByTxHash", mock.Anything, "0xabc").Return(nil, domainerrors.ErrNotFound)

	walletStore := &mockWalletStore{}
	walletStore.On("GetAddressOwner", mock.Anything, "ETH", "0xdead").Return(nil, domainerrors.ErrNotFound)

	notifier := &recordingNotifier{}
	svc := NewService(depositStore, walletStore, nil, config.ChainsConfig{}, notifier, testLogger())

	err := svc.ProcessDeposit(context.Background(), validEvent())

	assert.NoError(t, err)
	depositStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Zero(t, notifier.detected)
}

// Two listeners can race on the same transaction; the insert loser defers to
// the winner's record.
func TestProcessDeposit_InsertRaceDefersToWinner(t *testing.T) {
	depositStore := &mockDepositStore{}
	depositStore.On("GetByTxHash", mock.Anything, "0xabc").Return(nil, domainerrors.ErrNotFound)
	depositStore.On("Create", mock.Anything, mock.AnythingOfType("*entities.Deposit")).
		Return(domainerrors.ErrAlreadyExists)

	walletStore := &mockWalletStore{}
	walletStore.On("GetAddressOwner", mock.Anything, "ETH", "0xdead").
		Return(&entities.UserWallet{UserID: uuid.New(), TokenSymbol: "ETH", Address: "0xdead"}, nil)

	notifier := &recordingNotifier{}
	svc := NewService(depositStore, walletStore, nil, config.ChainsConfig{}, notifier, testLogger())

	err := svc.ProcessDeposit(context.Background(), validEvent())

	assert.NoError(t, err)
	depositStore.AssertExpectations(t)
	assert.Zero(t, notifier.detected)
}

func TestProcessDeposit_RecordsPendingBelowThreshold(t *testing.T) {
	owner := uuid.New()

	depositStore := &mockDepositStore{}
	depositStore.On("GetByTxHash", mock.Anything, "0xabc").Return(nil, domainerrors.ErrNotFound)

	var created *entities.Deposit
	depositStore.On("Create", mock.Anything, mock.AnythingOfType("*entities.Deposit")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entities.Deposit)
		}).
		Return(nil)

	walletStore := &mockWalletStore{}
	walletStore.On("GetAddressOwner", mock.Anything, "ETH", "0xdead").
		Return(&entities.UserWallet{UserID: owner, TokenSymbol: "ETH", Address: "0xdead"}, nil)

	cfg := config.ChainsConfig{EVM: config.EVMConfig{RequiredConfirmations: 12}}
	notifier := &recordingNotifier{}
	svc := NewService(depositStore, walletStore, nil, cfg, notifier, testLogger())

	err := svc.ProcessDeposit(context.Background(), validEvent())

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, owner, created.UserID)
	assert.Equal(t, "0xabc", created.TxHash)
	assert.Equal(t, entities.DepositStatusPending, created.Status)
	assert.Equal(t, int64(1), created.Confirmations)
	assert.Equal(t, 1, notifier.detected)
	// One confirmation against a threshold of twelve: no promotion attempt.
	depositStore.AssertNotCalled(t, "MarkConfirmedTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
