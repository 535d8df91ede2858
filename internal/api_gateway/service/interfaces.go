package service

import (
	"context"

	"github.com/banking-transfer-saga/internal/domain/account"
	"github.com/banking-transfer-saga/internal/domain/ledger"
	"github.com/banking-transfer-saga/internal/domain/reconciliation"
	"github.com/banking-transfer-saga/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount opens an account with a starting balance.
	// Returns ErrDuplicateAccount if the number is taken
	CreateAccount(ctx context.Context, number string, initialBalance decimal.Decimal) (*account.Account, error)

	// GetAccount retrieves an account by its number
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccount(ctx context.Context, number string) (*account.Account, error)

	// Debit and Credit mutate the balance directly, outside any transfer. A non-nil entry
	// returned together with ErrEventPublishFailure means the mutation committed.
	Debit(ctx context.Context, number string, amount decimal.Decimal, correlationID string) (*ledger.Entry, error)
	Credit(ctx context.Context, number string, amount decimal.Decimal, correlationID string) (*ledger.Entry, error)

	// ListEntries returns one page of the account's change log, newest first, and the
	// total number of entries
	ListEntries(ctx context.Context, number string, page, perPage int) ([]*ledger.Entry, int64, error)
}

// TransferRequest is what a client submits to move money between two accounts
type TransferRequest struct {
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	CorrelationID      string
}

// TransferService defines the interface for transfer operations
type TransferService interface {
	// RequestTransfer validates the request and publishes it. The returned id only
	// acknowledges acceptance; the outcome is read back with GetTransfer.
	RequestTransfer(ctx context.Context, req TransferRequest) (uuid.UUID, error)

	// GetTransfer returns ErrTransferNotFound until the coordinator has seen the request
	GetTransfer(ctx context.Context, transferID uuid.UUID) (*transfer.Transfer, error)
	GetHistory(ctx context.Context, transferID uuid.UUID) ([]*transfer.HistoryEntry, error)
}

// ReconciliationService exposes the holding area of events no transfer accepted
type ReconciliationService interface {
	// ListUnmatched returns one page of held events and the total held
	ListUnmatched(ctx context.Context, page, perPage int) ([]*reconciliation.UnmatchedEvent, int64, error)
}
