package service

import (
	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
)

// DefaultForeignRate is charged when the card issuer does not operate the ATM.
var DefaultForeignRate = decimal.RequireFromString("0.012")

type CommissionPolicy struct {
	foreignRate decimal.Decimal
}

func NewCommissionPolicy(foreignRate decimal.Decimal) CommissionPolicy {
	return CommissionPolicy{foreignRate: foreignRate}
}

// Rate returns zero for on-us withdrawals and the flat foreign rate otherwise.
func (p CommissionPolicy) Rate(issuingBankID, atmBankID int64) decimal.Decimal {
	if issuingBankID == atmBankID {
		return decimal.Zero
	}
	return p.foreignRate
}

// Quote prices amount at rate. Both results are rounded to cents.
func (p CommissionPolicy) Quote(amount, rate decimal.Decimal) (commission, total decimal.Decimal) {
	commission = domain.RoundMoney(amount.Mul(rate))
	total = domain.RoundMoney(amount.Add(commission))
	return commission, total
}
