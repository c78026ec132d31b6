package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/go-court-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockReservationRepository implements reservation.Repository
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) Insert(ctx context.Context, tx transaction.Tx, r *reservation.Reservation, now time.Time) error {
	args := m.Called(ctx, tx, r, now)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListActiveInRange(ctx context.Context, resourceID string, from, to, now time.Time) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, resourceID, from, to, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*reservation.Reservation), args.Error(1)
}

func (m *MockReservationRepository) UpdateStatus(ctx context.Context, id string, from []reservation.Status, change reservation.StatusChange) (bool, error) {
	args := m.Called(ctx, id, from, change)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) ExpireStaleHolds(ctx context.Context, now time.Time) ([]string, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockReservationRepository) LastDateForTemplate(ctx context.Context, templateID string) (*time.Time, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockReservationRepository) CancelByTemplate(ctx context.Context, templateID string, fromDate time.Time, change reservation.StatusChange) (int, error) {
	args := m.Called(ctx, templateID, fromDate, change)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationRepository) AddPayment(ctx context.Context, p *reservation.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// MockPublisher implements EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e reservation.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// MockLockManager implements redisinfra.Locker
type MockLockManager struct {
	mock.Mock
}

func (m *MockLockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (redisinfra.Lock, error) {
	args := m.Called(ctx, key, ttl, maxRetries, retryInterval)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(redisinfra.Lock), args.Error(1)
}

// MockLock implements redisinfra.Lock
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLock) Extend(ctx context.Context, ttl time.Duration) error {
	args := m.Called(ctx, ttl)
	return args.Error(0)
}

// === Test helper ===
type testDeps struct {
	txManager *MockTxManager
	tx        *MockTx
	resRepo   *MockReservationRepository
	publisher *MockPublisher
	clock     *clock.Mock
	service   *ReservationService
}

func newTestDeps() *testDeps {
	txm := new(MockTxManager)
	tx := new(MockTx)
	resRepo := new(MockReservationRepository)
	pub := new(MockPublisher)
	clk := clock.NewMock(time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))

	service := NewReservationService(txm, resRepo, clk, nil, pub, nil, DefaultLedgerConfig())

	return &testDeps{
		txManager: txm,
		tx:        tx,
		resRepo:   resRepo,
		publisher: pub,
		clock:     clk,
		service:   service,
	}
}

func unitInput() CreateReservationInput {
	return CreateReservationInput{
		TenantID:       testTenant,
		ResourceID:     testCourt,
		Date:           testDate,
		StartMin:       600,
		EndMin:         660,
		Price:          1000,
		DepositAmount:  300,
		IdempotencyKey: "key-1",
	}
}

// === Tests ===

func TestReservationService_CreatePending_Success(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, reservation.ErrReservationNotFound)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.resRepo.On("Insert", ctx, deps.tx, mock.AnythingOfType("*reservation.Reservation"), deps.clock.Now()).Return(nil)

	result, err := deps.service.CreatePending(ctx, unitInput())

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPendingPayment, result.Status)
	assert.Equal(t, int64(300), result.DepositAmount)
	assert.Equal(t, time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC), result.StartsAt)
	deps.txManager.AssertExpectations(t)
	deps.tx.AssertExpectations(t)
	deps.resRepo.AssertExpectations(t)
	deps.publisher.AssertNotCalled(t, "Publish")
}

func TestReservationService_CreatePending_IdempotencyHit(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	existing := &reservation.Reservation{ID: "existing-res", IdempotencyKey: "key-1", Status: reservation.StatusPendingPayment}
	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(existing, nil)

	result, err := deps.service.CreatePending(ctx, unitInput())

	require.NoError(t, err)
	assert.Equal(t, "existing-res", result.ID)
	deps.txManager.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestReservationService_CreatePending_IdempotencyLookupFailed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, errors.New("connection refused"))

	_, err := deps.service.CreatePending(ctx, unitInput())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "冪等性チェックに失敗")
	deps.txManager.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestReservationService_CreatePending_BeginFailed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, reservation.ErrReservationNotFound)
	deps.txManager.On("Begin", ctx).Return(nil, errors.New("too many connections"))

	_, err := deps.service.CreatePending(ctx, unitInput())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "トランザクション開始に失敗")
	deps.resRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_CreatePending_OverlapRollsBack(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, reservation.ErrReservationNotFound)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.resRepo.On("Insert", ctx, deps.tx, mock.Anything, mock.Anything).Return(reservation.ErrOverlap)

	_, err := deps.service.CreatePending(ctx, unitInput())

	assert.ErrorIs(t, err, reservation.ErrOverlap)
	deps.tx.AssertCalled(t, "Rollback")
	deps.tx.AssertNotCalled(t, "Commit")
}

func TestReservationService_CreatePending_CommitFailed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, reservation.ErrReservationNotFound)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(errors.New("serialization failure"))
	deps.resRepo.On("Insert", ctx, deps.tx, mock.Anything, mock.Anything).Return(nil)

	_, err := deps.service.CreatePending(ctx, unitInput())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "コミットに失敗")
}

func TestReservationService_CreatePending_DuplicateKeyRace(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	winner := &reservation.Reservation{ID: "winner", IdempotencyKey: "key-1"}
	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(nil, reservation.ErrReservationNotFound).Once()
	deps.resRepo.On("GetByIdempotencyKey", ctx, "key-1").Return(winner, nil).Once()
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.resRepo.On("Insert", ctx, deps.tx, mock.Anything, mock.Anything).Return(reservation.ErrDuplicateKey)

	result, err := deps.service.CreatePending(ctx, unitInput())

	require.NoError(t, err)
	assert.Equal(t, "winner", result.ID)
}

func TestReservationService_Confirm_PublishFailureIsIgnored(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	confirmed := &reservation.Reservation{ID: "res-1", ResourceID: testCourt, Status: reservation.StatusConfirmed}
	deps.resRepo.On("UpdateStatus", ctx, "res-1", []reservation.Status{reservation.StatusPendingPayment}, mock.AnythingOfType("reservation.StatusChange")).Return(true, nil)
	deps.resRepo.On("GetByID", ctx, "res-1").Return(confirmed, nil)
	deps.publisher.On("Publish", ctx, mock.MatchedBy(func(e reservation.Event) bool {
		return e.Type == reservation.EventConfirmed && e.ReservationID == "res-1"
	})).Return(errors.New("broker unavailable"))

	result, err := deps.service.Confirm(ctx, "res-1", "staff-1")

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, result.Status)
	deps.publisher.AssertExpectations(t)
}

func TestReservationService_UpdateStatusFailed(t *testing.T) {
	deps := newTestDeps()
	ctx := context.Background()

	deps.resRepo.On("UpdateStatus", ctx, "res-1", mock.Anything, mock.Anything).Return(false, errors.New("deadlock detected"))

	_, err := deps.service.Cancel(ctx, CancelInput{ID: "res-1", Actor: "staff-1"})

	assert.Error(t, err)
	deps.resRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	deps.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
