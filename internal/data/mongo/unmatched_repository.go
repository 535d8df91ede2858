package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/persistence"
)

const (
	// UnmatchedCollectionName is the capped collection holding events for reconciliation
	UnmatchedCollectionName = "unmatched_events"
)

// unmatchedDocument flattens an UnmatchedEvent. Ids and amounts are stored as strings.
type unmatchedDocument struct {
	EventID            string    `bson:"event_id"`
	Type               string    `bson:"type"`
	TransferID         string    `bson:"transfer_id,omitempty"`
	AccountNumber      string    `bson:"account_number"`
	DestinationAccount string    `bson:"destination_account,omitempty"`
	Amount             string    `bson:"amount"`
	Operation          string    `bson:"operation,omitempty"`
	FailureReason      string    `bson:"failure_reason,omitempty"`
	CorrelationID      string    `bson:"correlation_id,omitempty"`
	OccurredAt         time.Time `bson:"occurred_at"`
	Topic              string    `bson:"topic"`
	Reason             string    `bson:"reason"`
	ReceivedAt         time.Time `bson:"received_at"`
}

func newUnmatchedDocument(u *reconciliation.UnmatchedEvent) unmatchedDocument {
	doc := unmatchedDocument{
		EventID:            u.Event.EventID.String(),
		Type:               string(u.Event.Type),
		AccountNumber:      u.Event.AccountNumber,
		DestinationAccount: u.Event.DestinationAccount,
		Amount:             u.Event.Amount.String(),
		Operation:          string(u.Event.Operation),
		FailureReason:      string(u.Event.Reason),
		CorrelationID:      u.Event.CorrelationID,
		OccurredAt:         u.Event.OccurredAt,
		Topic:              u.Topic,
		Reason:             u.Reason,
		ReceivedAt:         u.ReceivedAt,
	}
	if u.Event.HasTransfer() {
		doc.TransferID = u.Event.TransferID.String()
	}
	return doc
}

func (d unmatchedDocument) unmatched() (*reconciliation.UnmatchedEvent, error) {
	evt := shared.Event{
		Type:               shared.EventType(d.Type),
		AccountNumber:      d.AccountNumber,
		DestinationAccount: d.DestinationAccount,
		Operation:          shared.Operation(d.Operation),
		Reason:             shared.FailureReason(d.FailureReason),
		CorrelationID:      d.CorrelationID,
		OccurredAt:         d.OccurredAt,
	}

	var err error
	if evt.EventID, err = uuid.Parse(d.EventID); err != nil {
		return nil, fmt.Errorf("invalid event id %q: %w", d.EventID, err)
	}
	if d.TransferID != "" {
		if evt.TransferID, err = uuid.Parse(d.TransferID); err != nil {
			return nil, fmt.Errorf("invalid transfer id %q: %w", d.TransferID, err)
		}
	}
	if evt.Amount, err = decimal.NewFromString(d.Amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", d.Amount, err)
	}

	return &reconciliation.UnmatchedEvent{
		Event:      evt,
		Topic:      d.Topic,
		Reason:     d.Reason,
		ReceivedAt: d.ReceivedAt,
	}, nil
}

// UnmatchedRepository implements reconciliation.Repository on a capped MongoDB collection
type UnmatchedRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewUnmatchedRepository creates a new MongoDB reconciliation repository
func NewUnmatchedRepository(logger *slog.Logger, db *mongo.Database) reconciliation.Repository {
	return &UnmatchedRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureUnmatchedCollection creates the capped collection. Once either bound is hit the
// oldest events are evicted.
func EnsureUnmatchedCollection(ctx context.Context, db *mongo.Database, maxBytes, maxEvents int64) error {
	return persistence.EnsureCappedCollection(ctx, db, UnmatchedCollectionName, maxBytes, maxEvents)
}

// Hold stores an event for manual reconciliation.
func (r *UnmatchedRepository) Hold(ctx context.Context, evt *reconciliation.UnmatchedEvent) error {
	collection := r.db.Collection(UnmatchedCollectionName)

	if _, err := collection.InsertOne(ctx, newUnmatchedDocument(evt)); err != nil {
		r.logger.Error("Failed to hold unmatched event",
			"event_id", evt.Event.EventID.String(),
			"type", string(evt.Event.Type),
			"reason", evt.Reason,
			"error", err)
		return fmt.Errorf("failed to hold unmatched event: %w", err)
	}

	return nil
}

// List returns held events, newest first.
func (r *UnmatchedRepository) List(ctx context.Context, limit, offset int) ([]*reconciliation.UnmatchedEvent, error) {
	collection := r.db.Collection(UnmatchedCollectionName)

	// capped collections keep insertion order, so natural order reversed is newest first
	opts := options.Find().
		SetSort(bson.D{{Key: "$natural", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list unmatched events", "error", err)
		return nil, fmt.Errorf("failed to list unmatched events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []unmatchedDocument
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode unmatched events", "error", err)
		return nil, fmt.Errorf("failed to decode unmatched events: %w", err)
	}

	events := make([]*reconciliation.UnmatchedEvent, 0, len(docs))
	for _, doc := range docs {
		evt, err := doc.unmatched()
		if err != nil {
			return nil, err
		}
		events = append(events, evt)
	}

	return events, nil
}

// Count returns the number of held events.
func (r *UnmatchedRepository) Count(ctx context.Context) (int64, error) {
	collection := r.db.Collection(UnmatchedCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.logger.Error("Failed to count unmatched events", "error", err)
		return 0, fmt.Errorf("failed to count unmatched events: %w", err)
	}

	return count, nil
}
