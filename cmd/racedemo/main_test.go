package main

import (
	"context"
	"testing"
	"time"

	"atmledger/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SerializedKeepsLedgerAndBalanceInStep(t *testing.T) {
	b, closeFn, err := openBackend(context.Background(), "", 5*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	rep, err := run(context.Background(), b, options{
		Mode: domain.ModeSerialized, Workers: 8, Amount: decimal.RequireFromString("100.00"), ATMID: 2, CardID: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, 8, rep.Succeeded)
	assert.Equal(t, "809.60", rep.Debited.StringFixed(2))
	assert.Equal(t, "190.40", rep.Actual.StringFixed(2))
	assert.False(t, rep.LostUpdate())
}

func TestRun_UnserializedLosesUpdates(t *testing.T) {
	b, closeFn, err := openBackend(context.Background(), "", 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	rep, err := run(context.Background(), b, options{
		Mode: domain.ModeUnserialized, Workers: 5, Amount: decimal.RequireFromString("10.00"), ATMID: 1, CardID: 1,
	})

	require.NoError(t, err)
	assert.Equal(t, 5, rep.Succeeded)
	assert.True(t, rep.LostUpdate(), "expected %s, actual %s", rep.Expected, rep.Actual)
	assert.True(t, rep.Actual.GreaterThan(rep.Expected))
}

func TestRun_RejectsNoWorkers(t *testing.T) {
	b, closeFn, err := openBackend(context.Background(), "", 0, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()

	_, err = run(context.Background(), b, options{Workers: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
