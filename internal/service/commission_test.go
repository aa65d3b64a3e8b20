package service

import (
	"testing"

	"atmledger/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionPolicy_Rate(t *testing.T) {
	p := NewCommissionPolicy(DefaultForeignRate)

	assert.True(t, p.Rate(1, 1).IsZero())
	assert.Equal(t, "0.012", p.Rate(1, 2).String())
}

func TestCommissionPolicy_Quote(t *testing.T) {
	p := NewCommissionPolicy(DefaultForeignRate)

	cases := []struct {
		amount, commission, total string
		foreign                   bool
	}{
		{"100.00", "0.00", "100.00", false},
		{"100.00", "1.20", "101.20", true},
		{"1.00", "0.01", "1.01", true},
		{"0.40", "0.00", "0.40", true},
		{"12345.67", "148.15", "12493.82", true},
	}
	for _, tc := range cases {
		rate := p.Rate(1, 1)
		if tc.foreign {
			rate = p.Rate(1, 2)
		}
		commission, total := p.Quote(dec(tc.amount), rate)
		assert.Equal(t, tc.commission, commission.StringFixed(2), tc.amount)
		assert.Equal(t, tc.total, total.StringFixed(2), tc.amount)
	}
}

func TestIsolationFor(t *testing.T) {
	iso, err := IsolationFor("")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeSerialized, iso.Mode())

	iso, err = IsolationFor(domain.ModeUnserialized)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeUnserialized, iso.Mode())

	_, err = IsolationFor("snapshot")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCheckUsable(t *testing.T) {
	auth := authFor("1.00", 1, 1)
	assert.NoError(t, checkUsable(auth))

	auth.ATMStatus = domain.ATMInactive
	auth.CardStatus = domain.CardBlocked
	err := checkUsable(auth)
	assert.ErrorIs(t, err, domain.ErrInactive)
	assert.Contains(t, err.Error(), "atm is inactive")
	assert.Contains(t, err.Error(), "card is blocked")
}
