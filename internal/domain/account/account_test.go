package account

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewAccount(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		before := time.Now().UTC()
		acc, err := NewAccount(" 1001 ", dec("500.00"))
		require.NoError(t, err)

		assert.Equal(t, "1001", acc.Number)
		assert.True(t, acc.Balance.Equal(dec("500")))
		assert.Equal(t, 1, acc.Version)
		assert.False(t, acc.CreatedAt.Before(before))
		assert.Equal(t, acc.CreatedAt, acc.UpdatedAt)
	})

	t.Run("EmptyNumber", func(t *testing.T) {
		_, err := NewAccount("  ", decimal.Zero)
		assert.ErrorIs(t, err, ErrEmptyAccountNumber)
	})

	t.Run("NegativeBalance", func(t *testing.T) {
		_, err := NewAccount("1001", dec("-0.01"))
		assert.ErrorIs(t, err, ErrNegativeBalance)
	})

	t.Run("BalanceBeyondScale", func(t *testing.T) {
		_, err := NewAccount("1001", dec("10.00001"))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestAccount_Debit(t *testing.T) {
	testCases := []struct {
		name        string
		balance     string
		amount      string
		wantErr     error
		wantBalance string
	}{
		{"partial debit", "500.00", "200.00", nil, "300.00"},
		{"exact balance", "50.00", "50.00", nil, "0"},
		{"insufficient funds", "50.00", "200.00", ErrInsufficientFunds, "50.00"},
		{"zero amount", "50.00", "0", ErrInvalidAmount, "50.00"},
		{"negative amount", "50.00", "-1", ErrInvalidAmount, "50.00"},
		{"five decimal places", "500.00", "200.00005", ErrInvalidAmount, "500.00"},
		{"below smallest unit", "500.00", "0.00001", ErrInvalidAmount, "500.00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			acc := &Account{Number: "1001", Balance: dec(tc.balance), Version: 3}

			err := acc.Debit(dec(tc.amount))

			assert.True(t, acc.Balance.Equal(dec(tc.wantBalance)), "balance %s", acc.Balance)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, 3, acc.Version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4, acc.Version)
		})
	}
}

func TestAccount_Credit(t *testing.T) {
	acc := &Account{Number: "7812", Balance: decimal.Zero, Version: 1}

	require.NoError(t, acc.Credit(dec("200.00")))
	assert.True(t, acc.Balance.Equal(dec("200")))
	assert.Equal(t, 2, acc.Version)

	assert.ErrorIs(t, acc.Credit(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, acc.Credit(dec("200.00005")), ErrInvalidAmount)
	assert.True(t, acc.Balance.Equal(dec("200")))
}

func TestAccount_CreditBeyondColumnRange(t *testing.T) {
	acc := &Account{Number: "7812", Balance: dec("9999999999999999.0000"), Version: 1}

	err := acc.Credit(dec("1"))

	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, acc.Balance.Equal(dec("9999999999999999")))
	assert.Equal(t, 1, acc.Version)
}

func TestAccount_DebitThenCreditRestoresBalance(t *testing.T) {
	amounts := []string{"0.01", "0.10", "33.33", "199.99", "500.00"}
	for _, a := range amounts {
		acc := &Account{Number: "1001", Balance: dec("500.00")}
		require.NoError(t, acc.Debit(dec(a)))
		require.NoError(t, acc.Credit(dec(a)))
		assert.True(t, acc.Balance.Equal(dec("500.00")), "amount %s left balance %s", a, acc.Balance)
	}
}

func TestErrAccountNotFound_Is(t *testing.T) {
	err := ErrAccountNotFound{AccountNumber: "1001"}
	assert.True(t, errors.Is(err, ErrAccountNotFound{}))
	assert.True(t, errors.Is(err, ErrAccountNotFound{AccountNumber: "1001"}))
	assert.False(t, errors.Is(err, ErrAccountNotFound{AccountNumber: "2002"}))
}
