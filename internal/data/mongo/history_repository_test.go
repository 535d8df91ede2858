package mongo

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHistoryRepository_Append(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	transferID := uuid.New()
	eventID := uuid.New()
	entry := &transfer.HistoryEntry{
		TransferID:   transferID,
		FromState:    transfer.StateDebited,
		ToState:      transfer.StateFailed,
		Compensation: transfer.CompensationPending,
		Trigger:      string(shared.EventCreditFailed),
		Reason:       shared.FailureReasonAccountNotFound,
		EventID:      eventID,
		OccurredAt:   time.Now().UTC(),
	}

	mt.Run("Success", func(mt *mtest.T) {
		repo := NewHistoryRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, repo.Append(context.Background(), entry))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
		doc := started.Command.Lookup("documents").Array().Index(0).Value().Document()
		assert.Equal(mt, transferID.String(), doc.Lookup("transfer_id").StringValue())
		assert.Equal(mt, "FAILED", doc.Lookup("to_state").StringValue())
		assert.Equal(mt, "PENDING", doc.Lookup("compensation").StringValue())
		assert.Equal(mt, eventID.String(), doc.Lookup("event_id").StringValue())
	})

	mt.Run("WriteError", func(mt *mtest.T) {
		repo := NewHistoryRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Append(context.Background(), entry)
		assert.ErrorContains(mt, err, "failed to append transfer history")
	})
}

func TestHistoryRepository_ListByTransferID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	transferID := uuid.New()
	eventID := uuid.New()
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("Ordered", func(mt *mtest.T) {
		repo := NewHistoryRepository(newTestLogger(), mt.DB)
		ns := mt.DB.Name() + "." + HistoryCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "transfer_id", Value: transferID.String()},
				{Key: "to_state", Value: "PENDING"},
				{Key: "compensation", Value: "NONE"},
				{Key: "trigger", Value: "transfer-requested"},
				{Key: "occurred_at", Value: first},
			},
			bson.D{
				{Key: "transfer_id", Value: transferID.String()},
				{Key: "from_state", Value: "PENDING"},
				{Key: "to_state", Value: "DEBITED"},
				{Key: "compensation", Value: "NONE"},
				{Key: "trigger", Value: "debited"},
				{Key: "event_id", Value: eventID.String()},
				{Key: "occurred_at", Value: first.Add(time.Second)},
			},
		))

		entries, err := repo.ListByTransferID(context.Background(), transferID)
		require.NoError(mt, err)
		require.Len(mt, entries, 2)

		assert.Equal(mt, transfer.StatePending, entries[0].ToState)
		assert.Equal(mt, uuid.Nil, entries[0].EventID)
		assert.Equal(mt, transfer.StatePending, entries[1].FromState)
		assert.Equal(mt, transfer.StateDebited, entries[1].ToState)
		assert.Equal(mt, eventID, entries[1].EventID)
		assert.True(mt, first.Add(time.Second).Equal(entries[1].OccurredAt))
	})

	mt.Run("Empty", func(mt *mtest.T) {
		repo := NewHistoryRepository(newTestLogger(), mt.DB)
		ns := mt.DB.Name() + "." + HistoryCollectionName
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		entries, err := repo.ListByTransferID(context.Background(), transferID)
		require.NoError(mt, err)
		assert.Empty(mt, entries)
	})

	mt.Run("CommandError", func(mt *mtest.T) {
		repo := NewHistoryRepository(newTestLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad sort",
		}))

		_, err := repo.ListByTransferID(context.Background(), transferID)
		assert.ErrorContains(mt, err, "failed to get transfer history")
	})
}
