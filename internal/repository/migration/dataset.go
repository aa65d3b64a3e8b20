package migration

import (
	"fmt"
	"time"

	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Dataset is a batch of reference data loaded into either store.
type Dataset struct {
	Banks     []domain.Bank
	Customers []domain.Customer
	Accounts  []domain.Account
	Cards     []domain.Card
	ATMs      []domain.ATM
	Operators []domain.Operator
}

// DemoDataset returns two banks, their customers and ATMs, and one admin
// operator whose password is hashed with bcrypt.
func DemoDataset(adminUsername, adminPassword string) (Dataset, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return Dataset{}, fmt.Errorf("hash demo password: %w", err)
	}
	exp := time.Date(time.Now().Year()+3, time.December, 31, 0, 0, 0, 0, time.UTC)

	return Dataset{
		Banks: []domain.Bank{
			{ID: 1, Name: "Северный банк"},
			{ID: 2, Name: "Южный банк"},
		},
		Customers: []domain.Customer{
			{ID: 1, BankID: 1, FullName: "Иванов Иван"},
			{ID: 2, BankID: 2, FullName: "Петрова Анна"},
			{ID: 3, BankID: 1, FullName: "Сидоров Олег"},
		},
		Accounts: []domain.Account{
			{ID: 1, CustomerID: 1, Balance: decimal.RequireFromString("1000.00"), Currency: "RUB"},
			{ID: 2, CustomerID: 2, Balance: decimal.RequireFromString("2500.00"), Currency: "RUB"},
			{ID: 3, CustomerID: 3, Balance: decimal.RequireFromString("50.00"), Currency: "RUB"},
		},
		Cards: []domain.Card{
			{ID: 1, AccountID: 1, IssuingBankID: 1, PanLast4: "1111", ExpDate: exp, Status: domain.CardActive},
			{ID: 2, AccountID: 2, IssuingBankID: 2, PanLast4: "2222", ExpDate: exp, Status: domain.CardActive},
			{ID: 3, AccountID: 3, IssuingBankID: 1, PanLast4: "3333", ExpDate: exp, Status: domain.CardActive},
			{ID: 4, AccountID: 1, IssuingBankID: 1, PanLast4: "4444", ExpDate: exp, Status: domain.CardBlocked},
		},
		ATMs: []domain.ATM{
			{ID: 1, BankID: 1, Location: "Москва, Тверская 1", Status: domain.ATMActive},
			{ID: 2, BankID: 2, Location: "Москва, Арбат 10", Status: domain.ATMActive},
			{ID: 3, BankID: 2, Location: "Казань, Баумана 5", Status: domain.ATMInactive},
		},
		Operators: []domain.Operator{
			{ID: 1, Username: adminUsername, PasswordHash: string(hash), Role: "admin"},
		},
	}, nil
}
