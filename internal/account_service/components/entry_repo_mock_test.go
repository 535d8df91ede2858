package components

import (
	"context"
	"time"

	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

type MockEntryRepo struct {
	mock.Mock
}

func (m *MockEntryRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
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
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepo) IncrementPublishAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepo) MarkFailedToPublish(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepo) WithTx(tx pgx.Tx) ledger.Repository {
	args := m.Called(tx)
	return args.Get(0).(ledger.Repository)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, evt *shared.Event) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
