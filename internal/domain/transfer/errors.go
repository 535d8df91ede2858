package transfer

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidTransferID      = errors.New("transfer id is required")
	ErrMissingAccount         = errors.New("source and destination accounts are required")
	ErrSameAccount            = errors.New("source and destination accounts must differ")
	ErrInvalidAmount          = errors.New("amount must be positive with at most 4 decimal places")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyFinalized       = errors.New("transfer already finalized")
)

// ErrTransferNotFound indicates no saga record exists for the transfer id
type ErrTransferNotFound struct {
	TransferID uuid.UUID
}

func (e ErrTransferNotFound) Error() string {
	return "transfer not found: " + e.TransferID.String()
}

// Is matches any ErrTransferNotFound when the target has no transfer id.
func (e ErrTransferNotFound) Is(target error) bool {
	t, ok := target.(ErrTransferNotFound)
	if !ok {
		return false
	}
	if t.TransferID == uuid.Nil {
		return true
	}
	return e.TransferID == t.TransferID
}
