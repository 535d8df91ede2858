package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/banking-transfer-saga/internal/platform/persistence"
)

const (
	// HistoryCollectionName is the name of the transfer history collection in MongoDB
	HistoryCollectionName = "transfer_history"
)

// historyDocument is the stored shape of a transfer.HistoryEntry
type historyDocument struct {
	TransferID   string    `bson:"transfer_id"`
	FromState    string    `bson:"from_state,omitempty"`
	ToState      string    `bson:"to_state"`
	Compensation string    `bson:"compensation"`
	Trigger      string    `bson:"trigger"`
	Reason       string    `bson:"reason,omitempty"`
	EventID      string    `bson:"event_id,omitempty"`
	OccurredAt   time.Time `bson:"occurred_at"`
}

func newHistoryDocument(entry *transfer.HistoryEntry) historyDocument {
	doc := historyDocument{
		TransferID:   entry.TransferID.String(),
		FromState:    string(entry.FromState),
		ToState:      string(entry.ToState),
		Compensation: string(entry.Compensation),
		Trigger:      entry.Trigger,
		Reason:       string(entry.Reason),
		OccurredAt:   entry.OccurredAt,
	}
	if entry.EventID != uuid.Nil {
		doc.EventID = entry.EventID.String()
	}
	return doc
}

func (d historyDocument) entry() (*transfer.HistoryEntry, error) {
	transferID, err := uuid.Parse(d.TransferID)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer id %q: %w", d.TransferID, err)
	}
	entry := &transfer.HistoryEntry{
		TransferID:   transferID,
		FromState:    transfer.State(d.FromState),
		ToState:      transfer.State(d.ToState),
		Compensation: transfer.CompensationStatus(d.Compensation),
		Trigger:      d.Trigger,
		Reason:       shared.FailureReason(d.Reason),
		OccurredAt:   d.OccurredAt,
	}
	if d.EventID != "" {
		if entry.EventID, err = uuid.Parse(d.EventID); err != nil {
			return nil, fmt.Errorf("invalid event id %q: %w", d.EventID, err)
		}
	}
	return entry, nil
}

// HistoryRepository implements the transfer.HistoryRepository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB transfer history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) transfer.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureHistoryIndexes creates the lookup index used by ListByTransferID.
func EnsureHistoryIndexes(ctx context.Context, db *mongo.Database) error {
	return persistence.EnsureIndexes(ctx, db.Collection(HistoryCollectionName), mongo.IndexModel{
		Keys: bson.D{{Key: "transfer_id", Value: 1}, {Key: "occurred_at", Value: 1}},
	})
}

// Append journals one transition.
func (r *HistoryRepository) Append(ctx context.Context, entry *transfer.HistoryEntry) error {
	collection := r.db.Collection(HistoryCollectionName)

	if _, err := collection.InsertOne(ctx, newHistoryDocument(entry)); err != nil {
		r.logger.Error("Failed to append transfer history",
			"transfer_id", entry.TransferID.String(),
			"to_state", string(entry.ToState),
			"error", err)
		return fmt.Errorf("failed to append transfer history: %w", err)
	}

	return nil
}

// ListByTransferID returns a transfer's transitions in the order they happened.
func (r *HistoryRepository) ListByTransferID(ctx context.Context, transferID uuid.UUID) ([]*transfer.HistoryEntry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"transfer_id": transferID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transfer history",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transfer history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []historyDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode transfer history",
			"transfer_id", transferID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transfer history: %w", err)
	}

	entries := make([]*transfer.HistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := doc.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
