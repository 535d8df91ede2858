package account

import (
	"errors"
	"strings"
	"time"

	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrInsufficientFunds  = errors.New("insufficient funds for debit")
	ErrInvalidAmount      = errors.New("amount must be positive with at most 4 decimal places")
	ErrNegativeBalance    = errors.New("initial balance cannot be negative")
	ErrEmptyAccountNumber = errors.New("account number cannot be empty")
)

// Account is a named balance holder. Balances are exact decimals and never negative.
type Account struct {
	Number    string          `json:"account_number"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int             `json:"version"` // For optimistic locking
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount opens an account with the given starting balance
func NewAccount(number string, initialBalance decimal.Decimal) (*Account, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrEmptyAccountNumber
	}
	if initialBalance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	if !shared.RepresentableAmount(initialBalance) {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Account{
		Number:    number,
		Balance:   initialBalance,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds amount to the balance. A credit the balance column could not hold is
// rejected like any other invalid amount.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !shared.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	balance := a.Balance.Add(amount)
	if !shared.RepresentableAmount(balance) {
		return ErrInvalidAmount
	}

	a.Balance = balance
	a.touch()
	return nil
}

// Debit subtracts amount from the balance. Insufficient funds leave the account untouched.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !shared.ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if !a.CanDebit(amount) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.touch()
	return nil
}

// CanDebit checks whether the balance covers amount
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
	a.Version++
}
