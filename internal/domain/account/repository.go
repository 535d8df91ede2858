package account

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository defines account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByNumber(ctx context.Context, number string) (*Account, error)

	// Update writes balance and version, failing with ErrConcurrentModification when
	// the stored version is not the one the account was read with.
	Update(ctx context.Context, account *Account) error

	// LockForUpdate reads the account holding a row lock until the surrounding transaction ends
	LockForUpdate(ctx context.Context, number string) (*Account, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	AccountNumber string
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for account: " + e.AccountNumber
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountNumber string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountNumber
}

// Is matches any ErrAccountNotFound when the target carries no account number.
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.AccountNumber == "" || t.AccountNumber == e.AccountNumber
}

// ErrDuplicateAccount indicates the account number is taken
type ErrDuplicateAccount struct {
	AccountNumber string
}

func (e ErrDuplicateAccount) Error() string {
	return "account already exists: " + e.AccountNumber
}
