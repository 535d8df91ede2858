package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) ListUnmatched(ctx context.Context, page, perPage int) ([]*reconciliation.UnmatchedEvent, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*reconciliation.UnmatchedEvent), args.Get(1).(int64), args.Error(2)
}

func TestReconciliationHandler_ListUnmatched(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		transferID := uuid.New()
		held := []*reconciliation.UnmatchedEvent{
			{
				Event:      *shared.NewOutcome(shared.EventCredited, transferID, "7812", decimal.NewFromInt(200), shared.OperationCredit, "", ""),
				Topic:      "account-credited",
				Reason:     reconciliation.ReasonLateCredit,
				ReceivedAt: time.Date(2024, 5, 1, 10, 6, 0, 0, time.UTC),
			},
			{
				Event:      *shared.NewOutcome(shared.EventDebited, uuid.Nil, "1001", decimal.NewFromInt(5), shared.OperationDebit, "", ""),
				Topic:      "account-debited",
				Reason:     reconciliation.ReasonNoMatchingSaga,
				ReceivedAt: time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC),
			},
		}
		mockService.On("ListUnmatched", mock.Anything, 1, 10).Return(held, int64(2), nil).Once()

		router := setupTestRouter()
		router.GET("/reconciliation/unmatched", NewReconciliationHandler(newTestLogger(), mockService).ListUnmatched)

		rr := doJSON(router, http.MethodGet, "/reconciliation/unmatched", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		var body []UnmatchedEventResponse
		envelope := decodeResponse(t, rr, &body)
		require.Len(t, body, 2)
		assert.Equal(t, transferID.String(), body[0].TransferID)
		assert.Equal(t, "LATE_CREDIT", body[0].Reason)
		assert.Equal(t, "credited", body[0].Type)
		assert.Empty(t, body[1].TransferID)
		assert.Equal(t, "account-debited", body[1].Topic)
		require.NotNil(t, envelope.Meta)
		assert.Equal(t, 2, envelope.Meta.TotalItems)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("ListUnmatched", mock.Anything, 1, 10).Return(nil, int64(0), errors.New("mongo down")).Once()

		router := setupTestRouter()
		router.GET("/reconciliation/unmatched", NewReconciliationHandler(newTestLogger(), mockService).ListUnmatched)

		rr := doJSON(router, http.MethodGet, "/reconciliation/unmatched", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
