package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the saga store. The Lock* methods take a row lock that is held until
// the surrounding transaction ends and return ErrTransferNotFound on a miss.
type Repository interface {
	// CreateIfAbsent inserts t unless its TransferID exists and reports whether it did.
	CreateIfAbsent(ctx context.Context, t *Transfer) (bool, error)
	GetByTransferID(ctx context.Context, transferID uuid.UUID) (*Transfer, error)
	LockByTransferID(ctx context.Context, transferID uuid.UUID) (*Transfer, error)

	// LockLatestBySource and LockLatestByDestination return the most recently created
	// transfer for the account in the given state.
	LockLatestBySource(ctx context.Context, account string, state State) (*Transfer, error)
	LockLatestByDestination(ctx context.Context, account string, state State) (*Transfer, error)

	// ListExpired returns ids of open transfers whose deadline passed before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, t *Transfer) error
	WithTx(tx pgx.Tx) Repository
}

// HistoryRepository journals every transition of every transfer
type HistoryRepository interface {
	Append(ctx context.Context, entry *HistoryEntry) error
	ListByTransferID(ctx context.Context, transferID uuid.UUID) ([]*HistoryEntry, error)
}
