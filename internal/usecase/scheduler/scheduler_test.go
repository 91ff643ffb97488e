package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/staccDOTsol/LIQpgobblerr/internal/domain"
)

// MockMonitor is a mock implementation of Monitor for testing
type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) Check(ctx context.Context) []domain.IncomingTransfer {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.IncomingTransfer)
}

// MockWorkflow is a mock implementation of Workflow for testing
type MockWorkflow struct {
	mock.Mock
}

func (m *MockWorkflow) Process(ctx context.Context, transfer domain.IncomingTransfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockWorkflow) Resume(ctx context.Context, rec *domain.TransferRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// MockTransferRepository is a mock implementation of TransferRepository for testing
type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) Insert(ctx context.Context, rec *domain.TransferRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockTransferRepository) FindBySignature(ctx context.Context, signature string) (*domain.TransferRecord, error) {
	args := m.Called(ctx, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransferRecord), args.Error(1)
}

func (m *MockTransferRepository) Update(ctx context.Context, signature string, update domain.TransferUpdate) error {
	args := m.Called(ctx, signature, update)
	return args.Error(0)
}

func (m *MockTransferRepository) FindDueForRetry(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TransferRecord), args.Error(1)
}

func (m *MockTransferRepository) ListRecent(ctx context.Context, limit int) ([]*domain.TransferRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TransferRecord), args.Error(1)
}

func newTestScheduler() (*Scheduler, *MockMonitor, *MockWorkflow, *MockTransferRepository) {
	monitor := new(MockMonitor)
	engine := new(MockWorkflow)
	repo := new(MockTransferRepository)
	s := New(monitor, engine, repo, Config{Interval: time.Hour, RetryBatchSize: 10})
	return s, monitor, engine, repo
}

func TestTick_ProcessesNewTransfersThenSweepsRetries(t *testing.T) {
	ctx := context.Background()
	s, monitor, engine, repo := newTestScheduler()

	fresh := domain.IncomingTransfer{Signature: "sig-new", AmountLamports: 1_000_000}
	due := &domain.TransferRecord{IncomingSignature: "sig-due", Status: domain.StatusPending}

	monitor.On("Check", ctx).Return([]domain.IncomingTransfer{fresh})
	engine.On("Process", ctx, fresh).Return(nil)
	repo.On("FindDueForRetry", ctx, 10).Return([]*domain.TransferRecord{due}, nil)
	engine.On("Resume", ctx, due).Return(nil)

	s.tick(ctx)

	engine.AssertExpectations(t)
}

func TestTick_OneFailureDoesNotAbortTheBatch(t *testing.T) {
	ctx := context.Background()
	s, monitor, engine, repo := newTestScheduler()

	first := domain.IncomingTransfer{Signature: "sig-a"}
	second := domain.IncomingTransfer{Signature: "sig-b"}

	monitor.On("Check", ctx).Return([]domain.IncomingTransfer{first, second})
	engine.On("Process", ctx, first).Return(errors.New("quote unavailable"))
	engine.On("Process", ctx, second).Return(nil)
	repo.On("FindDueForRetry", ctx, 10).Return([]*domain.TransferRecord{}, nil)

	s.tick(ctx)

	engine.AssertNumberOfCalls(t, "Process", 2)
}

func TestTick_ResumeFailureDoesNotAbortTheSweep(t *testing.T) {
	ctx := context.Background()
	s, monitor, engine, repo := newTestScheduler()

	older := &domain.TransferRecord{IncomingSignature: "sig-old"}
	newer := &domain.TransferRecord{IncomingSignature: "sig-newer"}

	monitor.On("Check", ctx).Return([]domain.IncomingTransfer{})
	repo.On("FindDueForRetry", ctx, 10).Return([]*domain.TransferRecord{older, newer}, nil)
	engine.On("Resume", ctx, older).Return(errors.New("still failing"))
	engine.On("Resume", ctx, newer).Return(nil)

	s.tick(ctx)

	engine.AssertNumberOfCalls(t, "Resume", 2)
}

func TestTick_SweepQueryFailureIsContained(t *testing.T) {
	ctx := context.Background()
	s, monitor, engine, repo := newTestScheduler()

	monitor.On("Check", ctx).Return([]domain.IncomingTransfer{})
	repo.On("FindDueForRetry", ctx, 10).Return(nil, errors.New("connection refused"))

	s.tick(ctx)

	engine.AssertNumberOfCalls(t, "Resume", 0)
}

func TestTick_PanicIsContained(t *testing.T) {
	ctx := context.Background()
	s, monitor, _, _ := newTestScheduler()

	monitor.On("Check", ctx).Run(func(mock.Arguments) { panic("collaborator bug") }).
		Return([]domain.IncomingTransfer{})

	assert.NotPanics(t, func() { s.tick(ctx) })
}

func TestRun_ExecutesImmediateFirstPassAndStopsOnCancel(t *testing.T) {
	s, monitor, _, repo := newTestScheduler()

	ctx, cancel := context.WithCancel(context.Background())

	monitor.On("Check", mock.Anything).Return([]domain.IncomingTransfer{})
	repo.On("FindDueForRetry", mock.Anything, 10).
		Run(func(mock.Arguments) { cancel() }).
		Return([]*domain.TransferRecord{}, nil)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
	monitor.AssertNumberOfCalls(t, "Check", 1)
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(new(MockMonitor), new(MockWorkflow), new(MockTransferRepository), Config{})

	assert.Equal(t, 10*time.Second, s.cfg.Interval)
	assert.Equal(t, 10, s.cfg.RetryBatchSize)
}
