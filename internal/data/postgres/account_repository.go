// Package postgres provides PostgreSQL implementations of the domain repositories.
// Amounts travel as text and are cast to NUMERIC in SQL so no precision is lost
// between shopspring decimals and the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const (
	accountColumns = `account_number, balance::text, version, created_at, updated_at`

	insertAccountQuery = `
		INSERT INTO accounts (account_number, balance, version, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4, $5)
	`

	selectAccountQuery = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE account_number = $1
	`

	lockAccountQuery = selectAccountQuery + ` FOR UPDATE`

	updateAccountQuery = `
		UPDATE accounts
		SET balance = $1::numeric, version = $2, updated_at = $3
		WHERE account_number = $4 AND version = $5
	`
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. A taken account number yields ErrDuplicateAccount.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	_, err := r.querier.Exec(ctx, insertAccountQuery,
		acc.Number,
		acc.Balance.String(),
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return account.ErrDuplicateAccount{AccountNumber: acc.Number}
		}
		r.logger.Error("Failed to create account", "account", acc.Number, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByNumber retrieves an account without locking it
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, selectAccountQuery, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountNumber: number}
		}
		r.logger.Error("Failed to get account", "account", number, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// LockForUpdate reads the account and holds its row lock until the transaction ends.
// Concurrent debits and credits of one account are serialized here.
func (r *AccountRepository) LockForUpdate(ctx context.Context, number string) (*account.Account, error) {
	acc, err := scanAccount(r.querier.QueryRow(ctx, lockAccountQuery, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountNumber: number}
		}
		r.logger.Error("Failed to lock account for update", "account", number, "error", err)
		return nil, fmt.Errorf("failed to lock account for update: %w", err)
	}
	return acc, nil
}

// Update writes the new balance, checking the version the account was read with.
func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	result, err := r.querier.Exec(ctx, updateAccountQuery,
		acc.Balance.String(),
		acc.Version,
		acc.UpdatedAt,
		acc.Number,
		acc.Version-1,
	)
	if err != nil {
		if persistence.IsCheckViolation(err) {
			return account.ErrInsufficientFunds
		}
		r.logger.Error("Failed to update account", "account", acc.Number, "error", err)
		return fmt.Errorf("failed to update account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return account.ErrConcurrentModification{AccountNumber: acc.Number}
	}

	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acc     account.Account
		balance string
	)
	if err := row.Scan(&acc.Number, &balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if acc.Balance, err = parseDecimal(balance); err != nil {
		return nil, err
	}
	return &acc, nil
}
