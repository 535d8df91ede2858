package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/domain/outbox"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	outboxColumns = `id, transfer_id, event_type, topic, message_key, payload, status, attempts, created_at, last_attempt_at`

	insertOutboxQuery = `
		INSERT INTO transfer_outbox (transfer_id, event_type, topic, message_key, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	selectPendingOutboxQuery = `
		SELECT ` + outboxColumns + `
		FROM transfer_outbox
		WHERE status = $1 AND created_at < $2
		ORDER BY id ASC
		LIMIT $3
	`

	selectOutboxByTransferQuery = `
		SELECT ` + outboxColumns + `
		FROM transfer_outbox
		WHERE transfer_id = $1
		ORDER BY id ASC
	`

	updateOutboxStatusQuery = `
		UPDATE transfer_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	incrementOutboxAttemptsQuery = `
		UPDATE transfer_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to tx so messages commit with the state change that produced them.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbox message in pending status.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, insertOutboxQuery,
		message.TransferID,
		string(message.EventType),
		message.Topic,
		message.Key,
		[]byte(message.Payload),
		string(message.Status),
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create outbox message",
			"transfer_id", message.TransferID.String(),
			"event_type", message.EventType,
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves pending messages older than olderThan in insertion order.
func (r *OutboxRepository) GetPending(ctx context.Context, olderThan time.Time, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectPendingOutboxQuery, string(shared.OutboxStatusPending), olderThan, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	return r.collect(rows)
}

// GetByTransferID lists every message a transfer produced
func (r *OutboxRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectOutboxByTransferQuery, transferID)
	if err != nil {
		r.logger.Error("Failed to get outbox messages by transfer", "transfer_id", transferID.String(), "error", err)
		return nil, fmt.Errorf("failed to get outbox messages by transfer: %w", err)
	}
	return r.collect(rows)
}

// UpdateStatus updates the message status and last attempt timestamp.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	result, err := r.querier.Exec(ctx, updateOutboxStatusQuery, string(status), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts increments the retry counter and updates last attempt time.
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	result, err := r.querier.Exec(ctx, incrementOutboxAttemptsQuery, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to increment outbox message attempts", "id", id, "error", err)
		return fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

func (r *OutboxRepository) collect(rows pgx.Rows) ([]*outbox.Message, error) {
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		var (
			message   outbox.Message
			eventType string
			status    string
			payload   []byte
		)
		err := rows.Scan(
			&message.ID,
			&message.TransferID,
			&eventType,
			&message.Topic,
			&message.Key,
			&payload,
			&status,
			&message.Attempts,
			&message.CreatedAt,
			&message.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		message.EventType = shared.EventType(eventType)
		message.Status = shared.OutboxStatus(status)
		message.Payload = payload
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}
