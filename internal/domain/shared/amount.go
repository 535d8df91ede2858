package shared

import "github.com/shopspring/decimal"

// AmountScale is the number of decimal places the ledger stores. Balances and amounts
// live in NUMERIC(20,4) columns.
const AmountScale = 4

// amountLimit is the first value a NUMERIC(20,4) column cannot hold.
var amountLimit = decimal.New(1, 20-AmountScale)

// RepresentableAmount reports whether d can be stored without rounding or overflow.
func RepresentableAmount(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale)) && d.Abs().LessThan(amountLimit)
}

// ValidAmount reports whether d can be moved by a ledger operation or a transfer.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && RepresentableAmount(d)
}
