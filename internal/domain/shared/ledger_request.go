package shared

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerRequest asks the ledger to apply one balance mutation. TransferID is uuid.Nil
// for direct operations that bypass the saga.
type LedgerRequest struct {
	TransferID    uuid.UUID       `json:"transfer_id"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Operation     Operation       `json:"operation"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// LedgerRequestFromCommand converts a bus command into a ledger request.
func LedgerRequestFromCommand(evt *Event) LedgerRequest {
	return LedgerRequest{
		TransferID:    evt.TransferID,
		AccountNumber: evt.AccountNumber,
		Amount:        evt.Amount,
		Operation:     evt.Operation,
		CorrelationID: evt.CorrelationID,
	}
}
