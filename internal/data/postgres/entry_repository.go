package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	entryColumns = `id, entry_id, account_number,
		COALESCE(transfer_id, '00000000-0000-0000-0000-000000000000'::uuid),
		operation, amount::text, balance_after::text, COALESCE(correlation_id, ''),
		publish_status, publish_attempts, created_at, published_at`

	insertEntryQuery = `
		INSERT INTO account_entries (entry_id, account_number, transfer_id, operation, amount, balance_after,
			correlation_id, publish_status, publish_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10)
		RETURNING id
	`

	selectEntryByTransferQuery = `
		SELECT ` + entryColumns + `
		FROM account_entries
		WHERE transfer_id = $1 AND operation = $2
	`

	selectEntriesByAccountQuery = `
		SELECT ` + entryColumns + `
		FROM account_entries
		WHERE account_number = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	countEntriesByAccountQuery = `
		SELECT COUNT(*)
		FROM account_entries
		WHERE account_number = $1
	`

	selectUnpublishedEntriesQuery = `
		SELECT ` + entryColumns + `
		FROM account_entries
		WHERE publish_status = $1 AND created_at < $2
		ORDER BY id ASC
		LIMIT $3
	`

	markEntryPublishedQuery = `
		UPDATE account_entries
		SET publish_status = $1, published_at = $2
		WHERE id = $3
	`

	incrementEntryAttemptsQuery = `
		UPDATE account_entries
		SET publish_attempts = publish_attempts + 1
		WHERE id = $1
	`

	markEntryFailedQuery = `
		UPDATE account_entries
		SET publish_status = $1
		WHERE id = $2
	`
)

// EntryRepository implements ledger.Repository on the account_entries change log
type EntryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEntryRepository creates a new PostgreSQL change log repository
func NewEntryRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &EntryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *EntryRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &EntryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends an entry. A second entry for the same transfer and operation is
// rejected by the unique index and reported as ErrDuplicateEntry.
func (r *EntryRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	err := r.querier.QueryRow(ctx, insertEntryQuery,
		entry.EntryID,
		entry.AccountNumber,
		nullableUUID(entry.TransferID),
		string(entry.Operation),
		entry.Amount.String(),
		entry.BalanceAfter.String(),
		nullableString(entry.CorrelationID),
		string(entry.PublishStatus),
		entry.PublishAttempts,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return ledger.ErrDuplicateEntry{TransferID: entry.TransferID, Operation: entry.Operation}
		}
		r.logger.Error("Failed to create ledger entry",
			"account", entry.AccountNumber,
			"transfer_id", entry.TransferID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// GetByTransferOperation returns the entry a transfer already produced for op
func (r *EntryRepository) GetByTransferOperation(ctx context.Context, transferID uuid.UUID, op shared.Operation) (*ledger.Entry, error) {
	entry, err := scanEntry(r.querier.QueryRow(ctx, selectEntryByTransferQuery, transferID, string(op)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{TransferID: transferID}
		}
		r.logger.Error("Failed to get ledger entry", "transfer_id", transferID.String(), "operation", op, "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// GetByAccount lists an account's entries, newest first
func (r *EntryRepository) GetByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*ledger.Entry, error) {
	rows, err := r.querier.Query(ctx, selectEntriesByAccountQuery, accountNumber, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "account", accountNumber, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return r.collect(rows)
}

// CountByAccount returns the number of entries recorded for an account
func (r *EntryRepository) CountByAccount(ctx context.Context, accountNumber string) (int64, error) {
	var count int64
	if err := r.querier.QueryRow(ctx, countEntriesByAccountQuery, accountNumber).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger entries", "account", accountNumber, "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

// GetUnpublished returns entries whose outcome was never confirmed on the bus
func (r *EntryRepository) GetUnpublished(ctx context.Context, olderThan time.Time, limit int) ([]*ledger.Entry, error) {
	rows, err := r.querier.Query(ctx, selectUnpublishedEntriesQuery, string(shared.OutboxStatusPending), olderThan, limit)
	if err != nil {
		r.logger.Error("Failed to get unpublished ledger entries", "error", err)
		return nil, fmt.Errorf("failed to get unpublished ledger entries: %w", err)
	}
	return r.collect(rows)
}

func (r *EntryRepository) MarkPublished(ctx context.Context, id int64) error {
	return r.exec(ctx, "mark ledger entry published", id, markEntryPublishedQuery,
		string(shared.OutboxStatusProcessed), time.Now().UTC(), id)
}

func (r *EntryRepository) IncrementPublishAttempts(ctx context.Context, id int64) error {
	return r.exec(ctx, "increment ledger entry attempts", id, incrementEntryAttemptsQuery, id)
}

func (r *EntryRepository) MarkFailedToPublish(ctx context.Context, id int64) error {
	return r.exec(ctx, "mark ledger entry failed", id, markEntryFailedQuery,
		string(shared.OutboxStatusFailedToPublish), id)
}

func (r *EntryRepository) exec(ctx context.Context, action string, id int64, query string, args ...any) error {
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+action, "id", id, "error", err)
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to %s: entry %d does not exist", action, id)
	}
	return nil
}

func (r *EntryRepository) collect(rows pgx.Rows) ([]*ledger.Entry, error) {
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		entry        ledger.Entry
		operation    string
		status       string
		amount       string
		balanceAfter string
	)
	err := row.Scan(
		&entry.ID,
		&entry.EntryID,
		&entry.AccountNumber,
		&entry.TransferID,
		&operation,
		&amount,
		&balanceAfter,
		&entry.CorrelationID,
		&status,
		&entry.PublishAttempts,
		&entry.CreatedAt,
		&entry.PublishedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Operation = shared.Operation(operation)
	entry.PublishStatus = shared.OutboxStatus(status)
	if entry.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if entry.BalanceAfter, err = parseDecimal(balanceAfter); err != nil {
		return nil, err
	}
	return &entry, nil
}
