package migration

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"atmledger/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRunMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS banks")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(context.Background(), db, zerolog.Nop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_InsertsThenAdvancesSequences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := Dataset{
		Banks:     []domain.Bank{{ID: 1, Name: "Северный банк"}},
		Customers: []domain.Customer{{ID: 1, BankID: 1, FullName: "Иванов Иван"}},
		Accounts:  []domain.Account{{ID: 1, CustomerID: 1, Balance: decimal.NewFromInt(10), Currency: "RUB"}},
		Cards:     []domain.Card{{ID: 1, AccountID: 1, IssuingBankID: 1, PanLast4: "1111", Status: domain.CardActive}},
		ATMs:      []domain.ATM{{ID: 1, BankID: 1, Location: "Тверская 1", Status: domain.ATMActive}},
		Operators: []domain.Operator{{ID: 1, Username: "admin", PasswordHash: "x", Role: "admin"}},
	}

	mock.ExpectBegin()
	for _, table := range []string{"banks", "customers", "accounts", "cards", "atms", "operators"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO " + table)).WillReturnResult(sqlmock.NewResult(1, 1))
	}
	for _, table := range []string{"banks", "customers", "accounts", "cards", "atms", "operators"} {
		mock.ExpectExec(regexp.QuoteMeta("FROM " + table)).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, Seed(context.Background(), db, d, zerolog.Nop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO banks")).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Seed(context.Background(), db, Dataset{Banks: []domain.Bank{{ID: 1, Name: "x"}}}, zerolog.Nop())

	assert.ErrorContains(t, err, "seed bank 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDemoDataset(t *testing.T) {
	d, err := DemoDataset("admin", "secret")
	require.NoError(t, err)

	require.Len(t, d.Operators, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(d.Operators[0].PasswordHash), []byte("secret")))
	for _, c := range d.Cards {
		assert.NoError(t, c.Validate())
	}
	for _, a := range d.Accounts {
		assert.Equal(t, int32(-2), a.Balance.Exponent())
	}
}
