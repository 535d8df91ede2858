package ledger

import (
	"context"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the ledger change log
type Repository interface {
	Create(ctx context.Context, entry *Entry) error

	// GetByTransferOperation finds the entry a transfer command already produced
	GetByTransferOperation(ctx context.Context, transferID uuid.UUID, op shared.Operation) (*Entry, error)
	GetByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]*Entry, error)
	CountByAccount(ctx context.Context, accountNumber string) (int64, error)

	// GetUnpublished returns pending entries created before olderThan, oldest first
	GetUnpublished(ctx context.Context, olderThan time.Time, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, id int64) error
	IncrementPublishAttempts(ctx context.Context, id int64) error
	MarkFailedToPublish(ctx context.Context, id int64) error
	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	TransferID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found for transfer: " + e.TransferID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target matches any ErrEntryNotFound
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID
}

// ErrDuplicateEntry indicates the transfer already has an entry for this operation
type ErrDuplicateEntry struct {
	TransferID uuid.UUID
	Operation  shared.Operation
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry: " + e.TransferID.String() + "/" + string(e.Operation)
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID && (t.Operation == "" || t.Operation == e.Operation)
}
