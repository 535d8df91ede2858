package recovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEntryRepo struct {
	mock.Mock
}

func (m *MockEntryRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockEntryRepo) GetByTransferOperation(ctx context.Context, transferID uuid.UUID, op shared.Operation) (*ledger.Entry, error) {
	args := m.Called(ctx, transferID, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepo) GetByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountNumber, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepo) CountByAccount(ctx context.Context, accountNumber string) (int64, error) {
	args := m.Called(ctx, accountNumber)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepo) GetUnpublished(ctx context.Context, olderThan time.Time, limit int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepo) MarkPublished(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEntryRepo) IncrementPublishAttempts(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEntryRepo) MarkFailedToPublish(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockEntryRepo) WithTx(tx pgx.Tx) ledger.Repository {
	return m.Called(tx).Get(0).(ledger.Repository)
}

type MockOutcomeAnnouncer struct {
	mock.Mock
}

func (m *MockOutcomeAnnouncer) Announce(ctx context.Context, entry *ledger.Entry) error {
	return m.Called(ctx, entry).Error(0)
}

func newEntry(id int64, attempts int) *ledger.Entry {
	entry := ledger.NewEntry(shared.LedgerRequest{
		TransferID:    uuid.New(),
		AccountNumber: "1001",
		Amount:        decimal.NewFromInt(10),
		Operation:     shared.OperationDebit,
	}, decimal.NewFromInt(90))
	entry.ID = id
	entry.PublishAttempts = attempts
	return entry
}

func newTestSweeper(repo *MockEntryRepo, announcer *MockOutcomeAnnouncer, now time.Time) *Sweeper {
	cfg := &config.RecoveryConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
		GracePeriod:      30 * time.Second,
	}
	s := NewSweeper(cfg, repo, announcer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * time.Second)

	t.Run("re-announces every entry", func(t *testing.T) {
		repo := &MockEntryRepo{}
		announcer := &MockOutcomeAnnouncer{}
		e1, e2 := newEntry(1, 0), newEntry(2, 1)

		repo.On("GetUnpublished", ctx, cutoff, 10).Return([]*ledger.Entry{e1, e2}, nil)
		announcer.On("Announce", ctx, e1).Return(nil)
		announcer.On("Announce", ctx, e2).Return(nil)

		assert.NoError(t, newTestSweeper(repo, announcer, now).sweep(ctx))
		announcer.AssertExpectations(t)
		repo.AssertNotCalled(t, "IncrementPublishAttempts", mock.Anything, mock.Anything)
	})

	t.Run("nothing to do", func(t *testing.T) {
		repo := &MockEntryRepo{}
		repo.On("GetUnpublished", ctx, cutoff, 10).Return([]*ledger.Entry{}, nil)

		assert.NoError(t, newTestSweeper(repo, &MockOutcomeAnnouncer{}, now).sweep(ctx))
	})

	t.Run("store failure", func(t *testing.T) {
		repo := &MockEntryRepo{}
		repo.On("GetUnpublished", ctx, cutoff, 10).Return(nil, errors.New("db error"))

		err := newTestSweeper(repo, &MockOutcomeAnnouncer{}, now).sweep(ctx)
		assert.ErrorContains(t, err, "failed to get unpublished ledger entries")
	})

	t.Run("failure counts an attempt and moves on", func(t *testing.T) {
		repo := &MockEntryRepo{}
		announcer := &MockOutcomeAnnouncer{}
		e1, e2 := newEntry(1, 0), newEntry(2, 0)

		repo.On("GetUnpublished", ctx, cutoff, 10).Return([]*ledger.Entry{e1, e2}, nil)
		announcer.On("Announce", ctx, e1).Return(shared.ErrEventPublishFailure)
		repo.On("IncrementPublishAttempts", ctx, int64(1)).Return(nil)
		announcer.On("Announce", ctx, e2).Return(nil)

		assert.NoError(t, newTestSweeper(repo, announcer, now).sweep(ctx))
		repo.AssertExpectations(t)
		announcer.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkFailedToPublish", mock.Anything, mock.Anything)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		repo := &MockEntryRepo{}
		announcer := &MockOutcomeAnnouncer{}
		e := newEntry(3, 2)

		repo.On("GetUnpublished", ctx, cutoff, 10).Return([]*ledger.Entry{e}, nil)
		announcer.On("Announce", ctx, e).Return(shared.ErrEventPublishFailure)
		repo.On("IncrementPublishAttempts", ctx, int64(3)).Return(nil)
		repo.On("MarkFailedToPublish", ctx, int64(3)).Return(nil)

		assert.NoError(t, newTestSweeper(repo, announcer, now).sweep(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("attempt bookkeeping failure skips the give-up check", func(t *testing.T) {
		repo := &MockEntryRepo{}
		announcer := &MockOutcomeAnnouncer{}
		e := newEntry(4, 5)

		repo.On("GetUnpublished", ctx, cutoff, 10).Return([]*ledger.Entry{e}, nil)
		announcer.On("Announce", ctx, e).Return(shared.ErrEventPublishFailure)
		repo.On("IncrementPublishAttempts", ctx, int64(4)).Return(errors.New("db error"))

		assert.NoError(t, newTestSweeper(repo, announcer, now).sweep(ctx))
		repo.AssertNotCalled(t, "MarkFailedToPublish", mock.Anything, mock.Anything)
	})
}

func TestSweeper_StartStopsOnCancel(t *testing.T) {
	repo := &MockEntryRepo{}
	repo.On("GetUnpublished", mock.Anything, mock.Anything, mock.Anything).Return([]*ledger.Entry{}, nil).Maybe()
	s := newTestSweeper(repo, &MockOutcomeAnnouncer{}, time.Now())
	s.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
