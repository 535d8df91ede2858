package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	transferColumns = `id, transfer_id, source_account, destination_account, amount::text, state,
		COALESCE(failure_reason, ''), compensation, COALESCE(correlation_id, ''),
		deadline_at, created_at, updated_at`

	insertTransferQuery = `
		INSERT INTO transfers (transfer_id, source_account, destination_account, amount, state,
			failure_reason, compensation, correlation_id, deadline_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (transfer_id) DO NOTHING
		RETURNING id
	`

	selectTransferQuery = `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE transfer_id = $1
	`

	lockTransferQuery = selectTransferQuery + ` FOR UPDATE`

	lockLatestBySourceQuery = `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE source_account = $1 AND state = $2
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`

	lockLatestByDestinationQuery = `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE destination_account = $1 AND state = $2
		ORDER BY id DESC
		LIMIT 1
		FOR UPDATE
	`

	selectExpiredTransfersQuery = `
		SELECT transfer_id
		FROM transfers
		WHERE state IN ('PENDING', 'DEBITED') AND deadline_at < $1
		ORDER BY deadline_at ASC
		LIMIT $2
	`

	updateTransferQuery = `
		UPDATE transfers
		SET state = $1, failure_reason = $2, compensation = $3, updated_at = $4
		WHERE transfer_id = $5
	`
)

// TransferRepository implements transfer.Repository, the saga store
type TransferRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransferRepository creates a new PostgreSQL saga store
func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) transfer.Repository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransferRepository) WithTx(tx pgx.Tx) transfer.Repository {
	return &TransferRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateIfAbsent inserts the record and reports false when the transfer id already exists,
// which makes a redelivered transfer request harmless.
func (r *TransferRepository) CreateIfAbsent(ctx context.Context, t *transfer.Transfer) (bool, error) {
	err := r.querier.QueryRow(ctx, insertTransferQuery,
		t.TransferID,
		t.SourceAccount,
		t.DestinationAccount,
		t.Amount.String(),
		string(t.State),
		nullableString(string(t.FailureReason)),
		string(t.Compensation),
		nullableString(t.CorrelationID),
		t.DeadlineAt,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Failed to create transfer", "transfer_id", t.TransferID.String(), "error", err)
		return false, fmt.Errorf("failed to create transfer: %w", err)
	}
	return true, nil
}

func (r *TransferRepository) GetByTransferID(ctx context.Context, transferID uuid.UUID) (*transfer.Transfer, error) {
	return r.getOne(ctx, "get transfer", transferID, selectTransferQuery, transferID)
}

func (r *TransferRepository) LockByTransferID(ctx context.Context, transferID uuid.UUID) (*transfer.Transfer, error) {
	return r.getOne(ctx, "lock transfer", transferID, lockTransferQuery, transferID)
}

func (r *TransferRepository) LockLatestBySource(ctx context.Context, account string, state transfer.State) (*transfer.Transfer, error) {
	return r.getOne(ctx, "lock latest transfer by source", uuid.Nil, lockLatestBySourceQuery, account, string(state))
}

func (r *TransferRepository) LockLatestByDestination(ctx context.Context, account string, state transfer.State) (*transfer.Transfer, error) {
	return r.getOne(ctx, "lock latest transfer by destination", uuid.Nil, lockLatestByDestinationQuery, account, string(state))
}

// ListExpired returns open transfers past their deadline, earliest deadline first
func (r *TransferRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.querier.Query(ctx, selectExpiredTransfersQuery, now, limit)
	if err != nil {
		r.logger.Error("Failed to list expired transfers", "error", err)
		return nil, fmt.Errorf("failed to list expired transfers: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired transfer: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over expired transfers: %w", err)
	}
	return ids, nil
}

// Update persists the mutable part of a transfer: state, failure reason and compensation.
func (r *TransferRepository) Update(ctx context.Context, t *transfer.Transfer) error {
	result, err := r.querier.Exec(ctx, updateTransferQuery,
		string(t.State),
		nullableString(string(t.FailureReason)),
		string(t.Compensation),
		t.UpdatedAt,
		t.TransferID,
	)
	if err != nil {
		r.logger.Error("Failed to update transfer", "transfer_id", t.TransferID.String(), "error", err)
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return transfer.ErrTransferNotFound{TransferID: t.TransferID}
	}
	return nil
}

func (r *TransferRepository) getOne(ctx context.Context, action string, transferID uuid.UUID, query string, args ...any) (*transfer.Transfer, error) {
	t, err := scanTransfer(r.querier.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{TransferID: transferID}
		}
		r.logger.Error("Failed to "+action, "args", args, "error", err)
		return nil, fmt.Errorf("failed to %s: %w", action, err)
	}
	return t, nil
}

func scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
	var (
		t            transfer.Transfer
		amount       string
		state        string
		reason       string
		compensation string
	)
	err := row.Scan(
		&t.ID,
		&t.TransferID,
		&t.SourceAccount,
		&t.DestinationAccount,
		&amount,
		&state,
		&reason,
		&compensation,
		&t.CorrelationID,
		&t.DeadlineAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.State = transfer.State(state)
	t.FailureReason = shared.FailureReason(reason)
	t.Compensation = transfer.CompensationStatus(compensation)
	if t.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &t, nil
}
