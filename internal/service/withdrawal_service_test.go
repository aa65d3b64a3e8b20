package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ResolveAuthorization(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	args := m.Called(ctx, atmID, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Authorization), args.Error(1)
}

func (m *MockLedgerRepository) ResolveAuthorizationForUpdate(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	args := m.Called(ctx, atmID, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Authorization), args.Error(1)
}

func (m *MockLedgerRepository) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	args := m.Called(ctx, accountID, balance.StringFixed(2))
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	args := m.Called(ctx, w)
	if args.Error(0) == nil {
		w.ID = 1
	}
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordWithdrawal(mode domain.Mode, outcome string, took time.Duration, commission decimal.Decimal) {
	m.Called(mode, outcome, commission.StringFixed(2))
}

var operator = domain.Identity{OperatorID: 1, Username: "admin", Role: "admin"}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func authFor(balance string, issuer, atmBank int64) *domain.Authorization {
	return &domain.Authorization{
		AccountID:     10,
		Balance:       dec(balance),
		Currency:      "RUB",
		IssuingBankID: issuer,
		ATMBankID:     atmBank,
		CardStatus:    domain.CardActive,
		ATMStatus:     domain.ATMActive,
	}
}

func newMockedService() (*MockUnitOfWork, *MockLedgerRepository, *MockMetrics, *withdrawalService) {
	uow := new(MockUnitOfWork)
	ledger := new(MockLedgerRepository)
	metrics := new(MockMetrics)
	svc := NewWithdrawalService(uow, ledger, NewCommissionPolicy(DefaultForeignRate), metrics).(*withdrawalService)
	return uow, ledger, metrics, svc
}

func TestExecute_SameBankNoCommission(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(authFor("1000.00", 1, 1), nil)
	ledger.On("SetBalance", mock.Anything, int64(10), "900.00").Return(nil)
	ledger.On("AppendWithdrawal", mock.Anything, mock.MatchedBy(func(w *domain.Withdrawal) bool {
		return w.AccountID == 10 && w.Commission.IsZero() && w.Total.Equal(dec("100")) && !w.CreatedAt.IsZero()
	})).Return(nil)
	metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeSuccess, "0.00").Return()

	res, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("100.00")})

	require.NoError(t, err)
	assert.Equal(t, "0.00", res.Commission.StringFixed(2))
	assert.Equal(t, "100.00", res.Total.StringFixed(2))
	assert.Equal(t, domain.ModeSerialized, res.Mode)
	assert.Equal(t, int64(1), res.WithdrawalID)
	uow.AssertExpectations(t)
	ledger.AssertExpectations(t)
	metrics.AssertExpectations(t)
}

func TestExecute_ForeignBankCommission(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(authFor("1000.00", 1, 2), nil)
	ledger.On("SetBalance", mock.Anything, int64(10), "898.80").Return(nil)
	ledger.On("AppendWithdrawal", mock.Anything, mock.AnythingOfType("*domain.Withdrawal")).Return(nil)
	metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeSuccess, "1.20").Return()

	res, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("100.00")})

	require.NoError(t, err)
	assert.Equal(t, "1.20", res.Commission.StringFixed(2))
	assert.Equal(t, "101.20", res.Total.StringFixed(2))
	ledger.AssertExpectations(t)
}

func TestExecute_UnserializedUsesPlainRead(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorization", mock.Anything, int64(1), int64(2)).Return(authFor("1000.00", 1, 1), nil)
	ledger.On("SetBalance", mock.Anything, int64(10), "950.00").Return(nil)
	ledger.On("AppendWithdrawal", mock.Anything, mock.AnythingOfType("*domain.Withdrawal")).Return(nil)
	metrics.On("RecordWithdrawal", domain.ModeUnserialized, OutcomeSuccess, "0.00").Return()

	res, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{
		ATMID: 1, CardID: 2, Amount: dec("50.00"), Mode: domain.ModeUnserialized,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ModeUnserialized, res.Mode)
	assert.Contains(t, res.Message, "without account locking")
	ledger.AssertNotCalled(t, "ResolveAuthorizationForUpdate", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertExpectations(t)
}

func TestExecute_InsufficientFunds(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(authFor("50.00", 1, 2), nil)
	metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeInsufficientFunds, "0.00").Return()

	res, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("100.00")})

	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Nil(t, res)
	ledger.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "AppendWithdrawal", mock.Anything, mock.Anything)
	metrics.AssertExpectations(t)
}

func TestExecute_CommissionTipsOverBalance(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(authFor("100.00", 1, 2), nil)
	metrics.On("RecordWithdrawal", mock.Anything, OutcomeInsufficientFunds, mock.Anything).Return()

	_, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("100.00")})

	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestExecute_NotFound(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(9), int64(2)).Return(nil, domain.ErrNotFound)
	metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeNotFound, "0.00").Return()

	_, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 9, CardID: 2, Amount: dec("1.00")})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	ledger.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_InactiveATMOrBlockedCard(t *testing.T) {
	cases := map[string]func(a *domain.Authorization){
		"atm inactive": func(a *domain.Authorization) { a.ATMStatus = domain.ATMInactive },
		"card blocked": func(a *domain.Authorization) { a.CardStatus = domain.CardBlocked },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			uow, ledger, metrics, svc := newMockedService()
			auth := authFor("1000.00", 1, 1)
			mutate(auth)

			uow.On("Do", mock.Anything).Return(nil)
			ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(auth, nil)
			metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeInactive, "0.00").Return()

			_, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("10.00")})

			assert.ErrorIs(t, err, domain.ErrInactive)
			ledger.AssertNotCalled(t, "SetBalance", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExecute_InvalidRequestNeverTouchesStorage(t *testing.T) {
	cases := []struct {
		name string
		req  domain.WithdrawalReq
	}{
		{"zero atm", domain.WithdrawalReq{ATMID: 0, CardID: 1, Amount: dec("10")}},
		{"negative card", domain.WithdrawalReq{ATMID: 1, CardID: -1, Amount: dec("10")}},
		{"zero amount", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: decimal.Zero}},
		{"negative amount", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: dec("-3")}},
		{"sub-cent amount", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: dec("1.001")}},
		{"huge exponent", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: decimal.New(1, 900000000)}},
		{"tiny exponent", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: decimal.New(1, -900000000)}},
		{"unknown mode", domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: dec("1"), Mode: "optimistic"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uow, ledger, metrics, svc := newMockedService()
			metrics.On("RecordWithdrawal", mock.Anything, OutcomeInvalid, "0.00").Return()

			_, err := svc.Execute(context.Background(), operator, &tc.req)

			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			uow.AssertNotCalled(t, "Do", mock.Anything)
			ledger.AssertExpectations(t)
		})
	}
}

func TestExecute_RequiresAuthenticatedCaller(t *testing.T) {
	uow, _, metrics, svc := newMockedService()
	metrics.On("RecordWithdrawal", mock.Anything, OutcomeUnauthorized, "0.00").Return()

	_, err := svc.Execute(context.Background(), domain.Identity{}, &domain.WithdrawalReq{ATMID: 1, CardID: 1, Amount: dec("1")})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	uow.AssertNotCalled(t, "Do", mock.Anything)
}

func TestExecute_UnexpectedErrorBecomesStorageError(t *testing.T) {
	uow, ledger, metrics, svc := newMockedService()

	dbErr := errors.New("database error")
	uow.On("Do", mock.Anything).Return(nil)
	ledger.On("ResolveAuthorizationForUpdate", mock.Anything, int64(1), int64(2)).Return(authFor("500.00", 1, 1), nil)
	ledger.On("SetBalance", mock.Anything, int64(10), "400.00").Return(nil)
	ledger.On("AppendWithdrawal", mock.Anything, mock.AnythingOfType("*domain.Withdrawal")).Return(dbErr)
	metrics.On("RecordWithdrawal", domain.ModeSerialized, OutcomeStorageError, "0.00").Return()

	res, err := svc.Execute(context.Background(), operator, &domain.WithdrawalReq{ATMID: 1, CardID: 2, Amount: dec("100.00")})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, dbErr)
	// SetBalance ran, but the unit of work discards it together with the failed insert.
	ledger.AssertCalled(t, "SetBalance", mock.Anything, int64(10), "400.00")
	metrics.AssertExpectations(t)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeStorageError, Outcome(errors.New("x")))
	assert.Equal(t, OutcomeNotFound, Outcome(domain.ErrNotFound))
}
