package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Debit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerService) Credit(ctx context.Context, request *shared.LedgerRequest) (*ledger.Entry, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
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

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, sourceTopic, key string, value []byte, reason string) error {
	args := m.Called(ctx, sourceTopic, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encode(t *testing.T, evt *shared.Event) []byte {
	t.Helper()
	data, err := evt.Encode()
	require.NoError(t, err)
	return data
}

func TestCommandHandler_Debit(t *testing.T) {
	ctx := context.Background()
	transferID := uuid.New()
	amount := decimal.RequireFromString("200.00")
	payload := encode(t, shared.NewCommand(shared.OperationDebit, transferID, "1001", amount, "corr-1"))

	testCases := []struct {
		name       string
		ledgerErr  error
		publishErr error
		wantReason shared.FailureReason
		wantErr    bool
	}{
		{name: "applied"},
		{name: "insufficient funds", ledgerErr: account.ErrInsufficientFunds, wantReason: shared.FailureReasonInsufficientFunds},
		{name: "unknown account", ledgerErr: account.ErrAccountNotFound{AccountNumber: "1001"}, wantReason: shared.FailureReasonAccountNotFound},
		{name: "invalid amount", ledgerErr: account.ErrInvalidAmount, wantReason: shared.FailureReasonInvalidAmount},
		{
			name:       "rejection not announced",
			ledgerErr:  account.ErrInsufficientFunds,
			publishErr: errors.New("broker down"),
			wantReason: shared.FailureReasonInsufficientFunds,
			wantErr:    true,
		},
		{name: "outcome not announced", ledgerErr: shared.ErrEventPublishFailure, wantErr: true},
		{name: "database unavailable", ledgerErr: errors.New("connection refused"), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ledgerSvc := &MockLedgerService{}
			publisher := &MockEventPublisher{}
			handler := NewCommandHandler(newTestLogger(), "debit-account", shared.EventDebitCommand, ledgerSvc, publisher, nil)

			ledgerSvc.On("Debit", mock.Anything, mock.MatchedBy(func(r *shared.LedgerRequest) bool {
				return r.TransferID == transferID && r.AccountNumber == "1001" && r.Amount.Equal(amount) && r.CorrelationID == "corr-1"
			})).Return(nil, tc.ledgerErr)

			if tc.wantReason != "" {
				publisher.On("PublishEvent", mock.Anything, mock.MatchedBy(func(evt *shared.Event) bool {
					return evt.Type == shared.EventDebitFailed &&
						evt.TransferID == transferID &&
						evt.AccountNumber == "1001" &&
						evt.Amount.Equal(amount) &&
						evt.Reason == tc.wantReason
				})).Return(tc.publishErr)
			}

			err := handler.HandleMessage(ctx, []byte("1001"), payload)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if tc.publishErr != nil {
				assert.ErrorIs(t, err, shared.ErrEventPublishFailure)
			}
			ledgerSvc.AssertExpectations(t)
			publisher.AssertExpectations(t)
		})
	}
}

func TestCommandHandler_CreditAndCompensate(t *testing.T) {
	ctx := context.Background()
	transferID := uuid.New()
	amount := decimal.NewFromInt(50)

	t.Run("credit applied", func(t *testing.T) {
		ledgerSvc := &MockLedgerService{}
		publisher := &MockEventPublisher{}
		handler := NewCommandHandler(newTestLogger(), "credit-account", shared.EventCreditCommand, ledgerSvc, publisher, nil)

		ledgerSvc.On("Credit", mock.Anything, mock.MatchedBy(func(r *shared.LedgerRequest) bool {
			return r.Operation == shared.OperationCredit && r.AccountNumber == "7812"
		})).Return(&ledger.Entry{}, nil)

		payload := encode(t, shared.NewCommand(shared.OperationCredit, transferID, "7812", amount, ""))
		require.NoError(t, handler.HandleMessage(ctx, []byte("7812"), payload))
		ledgerSvc.AssertExpectations(t)
		publisher.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
	})

	t.Run("credit to unknown account", func(t *testing.T) {
		ledgerSvc := &MockLedgerService{}
		publisher := &MockEventPublisher{}
		handler := NewCommandHandler(newTestLogger(), "credit-account", shared.EventCreditCommand, ledgerSvc, publisher, nil)

		ledgerSvc.On("Credit", mock.Anything, mock.Anything).Return(nil, account.ErrAccountNotFound{AccountNumber: "7812"})
		publisher.On("PublishEvent", mock.Anything, mock.MatchedBy(func(evt *shared.Event) bool {
			return evt.Type == shared.EventCreditFailed &&
				evt.Operation == shared.OperationCredit &&
				evt.Reason == shared.FailureReasonAccountNotFound
		})).Return(nil)

		payload := encode(t, shared.NewCommand(shared.OperationCredit, transferID, "7812", amount, ""))
		require.NoError(t, handler.HandleMessage(ctx, []byte("7812"), payload))
		publisher.AssertExpectations(t)
	})

	t.Run("compensation keeps its operation", func(t *testing.T) {
		ledgerSvc := &MockLedgerService{}
		publisher := &MockEventPublisher{}
		handler := NewCommandHandler(newTestLogger(), "revert-debit", shared.EventCompensateCommand, ledgerSvc, publisher, nil)

		ledgerSvc.On("Credit", mock.Anything, mock.MatchedBy(func(r *shared.LedgerRequest) bool {
			return r.Operation == shared.OperationCompensate
		})).Return(nil, account.ErrAccountNotFound{AccountNumber: "1001"})
		publisher.On("PublishEvent", mock.Anything, mock.MatchedBy(func(evt *shared.Event) bool {
			return evt.Type == shared.EventCreditFailed && evt.Operation == shared.OperationCompensate
		})).Return(nil)

		// a payload without type or operation takes both from the topic
		payload := []byte(`{"transfer_id":"` + transferID.String() + `","account_number":"1001","amount":"50"}`)
		require.NoError(t, handler.HandleMessage(ctx, []byte("1001"), payload))
		ledgerSvc.AssertExpectations(t)
		publisher.AssertExpectations(t)
	})
}

func TestCommandHandler_PoisonMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("sent to DLQ and acknowledged", func(t *testing.T) {
		ledgerSvc := &MockLedgerService{}
		dlq := &MockDeadLetterPublisher{}
		handler := NewCommandHandler(newTestLogger(), "debit-account", shared.EventDebitCommand, ledgerSvc, &MockEventPublisher{}, dlq)

		dlq.On("PublishToDLQ", mock.Anything, "debit-account", "k", []byte("{{"), mock.AnythingOfType("string")).Return(nil)

		assert.NoError(t, handler.HandleMessage(ctx, []byte("k"), []byte("{{")))
		dlq.AssertExpectations(t)
		ledgerSvc.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything)
	})

	t.Run("DLQ failure keeps the message", func(t *testing.T) {
		dlq := &MockDeadLetterPublisher{}
		handler := NewCommandHandler(newTestLogger(), "debit-account", shared.EventDebitCommand, &MockLedgerService{}, &MockEventPublisher{}, dlq)

		dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dlq down"))

		err := handler.HandleMessage(ctx, []byte("k"), []byte("{{"))
		assert.ErrorIs(t, err, shared.ErrInvalidEvent)
	})

	t.Run("no DLQ configured", func(t *testing.T) {
		handler := NewCommandHandler(newTestLogger(), "debit-account", shared.EventDebitCommand, &MockLedgerService{}, &MockEventPublisher{}, nil)

		err := handler.HandleMessage(ctx, []byte("k"), []byte(`{"amount":"1"}`))
		assert.ErrorIs(t, err, shared.ErrInvalidEvent)
	})

	t.Run("outcome published on a command topic", func(t *testing.T) {
		dlq := &MockDeadLetterPublisher{}
		handler := NewCommandHandler(newTestLogger(), "debit-account", "", &MockLedgerService{}, &MockEventPublisher{}, dlq)
		dlq.On("PublishToDLQ", mock.Anything, "debit-account", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		payload := encode(t, shared.NewOutcome(shared.EventDebited, uuid.New(), "1001", decimal.NewFromInt(1), shared.OperationDebit, "", ""))
		assert.NoError(t, handler.HandleMessage(ctx, []byte("k"), payload))
		dlq.AssertExpectations(t)
	})
}
