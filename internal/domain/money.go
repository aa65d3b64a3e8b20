package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the fixed-point precision of every stored amount.
const MoneyPlaces = 2

// Amounts are stored as NUMERIC(14,2).
const (
	MaxIntegerDigits   = 12
	minExponent        = -18
	maxCoefficientBits = 128
)

func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ValidateAmount rejects non-positive amounts, sub-cent precision and
// anything that does not fit the ledger column. Exponent and coefficient are
// bounded before any arithmetic: Round and Cmp rescale to a common exponent.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	exp := amount.Exponent()
	if exp < minExponent || exp > MaxIntegerDigits {
		return fmt.Errorf("%w: amount is out of range", ErrInvalidRequest)
	}
	coef := amount.Coefficient()
	if coef.BitLen() > maxCoefficientBits || len(coef.String())+int(exp) > MaxIntegerDigits {
		return fmt.Errorf("%w: amount must be below 10^%d", ErrInvalidRequest, MaxIntegerDigits)
	}
	if !amount.Equal(RoundMoney(amount)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", ErrInvalidRequest, MoneyPlaces)
	}
	return nil
}
