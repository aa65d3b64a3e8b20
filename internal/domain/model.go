package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Mode selects how the account row is protected while a withdrawal runs.
type Mode string

const (
	ModeSerialized   Mode = "serialized"
	ModeUnserialized Mode = "unserialized"
)

type ATMStatus string

const (
	ATMActive   ATMStatus = "active"
	ATMInactive ATMStatus = "inactive"
)

type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardBlocked CardStatus = "blocked"
)

var panLast4Re = regexp.MustCompile(`^[0-9]{4}$`)

type Bank struct {
	ID   int64
	Name string
}

type Customer struct {
	ID       int64
	BankID   int64
	FullName string
}

type Account struct {
	ID         int64
	CustomerID int64
	Balance    decimal.Decimal
	Currency   string
}

type Card struct {
	ID            int64
	AccountID     int64
	IssuingBankID int64
	PanLast4      string
	ExpDate       time.Time
	Status        CardStatus
}

// Validate checks the stored card shape, not whether it can be used.
func (c Card) Validate() error {
	if !panLast4Re.MatchString(c.PanLast4) {
		return fmt.Errorf("%w: pan_last4 must be exactly 4 digits", ErrInvalidRequest)
	}
	if c.Status != CardActive && c.Status != CardBlocked {
		return fmt.Errorf("%w: unknown card status %q", ErrInvalidRequest, c.Status)
	}
	return nil
}

type ATM struct {
	ID       int64
	BankID   int64
	Location string
	Status   ATMStatus
}

// Withdrawal is a ledger row. It is written once and never updated.
type Withdrawal struct {
	ID         int64
	ATMID      int64
	CardID     int64
	AccountID  int64
	Amount     decimal.Decimal
	Commission decimal.Decimal
	Total      decimal.Decimal
	CreatedAt  time.Time
}

type WithdrawalReq struct {
	ATMID  int64           `json:"atm_id" validate:"gt=0"`
	CardID int64           `json:"card_id" validate:"gt=0"`
	Amount decimal.Decimal `json:"amount"`
	Mode   Mode            `json:"mode" validate:"omitempty,oneof=serialized unserialized"`
}

type WithdrawalResult struct {
	WithdrawalID int64
	AccountID    int64
	Commission   decimal.Decimal
	Total        decimal.Decimal
	Mode         Mode
	Message      string
}

// Authorization is the snapshot the executor decides on: balance and the
// bank identifiers that drive the commission, read in one statement.
type Authorization struct {
	AccountID     int64
	Balance       decimal.Decimal
	Currency      string
	IssuingBankID int64
	ATMBankID     int64
	CardStatus    CardStatus
	ATMStatus     ATMStatus
}

type CardInfo struct {
	CardID      int64
	PanLast4    string
	IssuingBank string
	Balance     decimal.Decimal
	Currency    string
	FullName    string
}

type Operator struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
}

// Identity is an already authenticated caller.
type Identity struct {
	OperatorID int64
	Username   string
	Role       string
}

func (i Identity) IsAdmin() bool { return i.Role == "admin" }

// OperationFilter narrows the operations log. Zero values mean "any".
type OperationFilter struct {
	ATMBankID int64     `json:"bank_id,omitempty"`
	ATMID     int64     `json:"atm_id,omitempty"`
	CardID    int64     `json:"card_id,omitempty"`
	DateFrom  time.Time `json:"date_from,omitempty"`
	DateTo    time.Time `json:"date_to,omitempty"`
}

func (f OperationFilter) IsEmpty() bool {
	return f.ATMBankID == 0 && f.ATMID == 0 && f.CardID == 0 && f.DateFrom.IsZero() && f.DateTo.IsZero()
}

type Operation struct {
	Withdrawal
	FullName    string
	PanLast4    string
	CardBank    string
	ATMLocation string
	ATMBank     string
}

type ActiveATM struct {
	ID       int64
	Location string
	BankName string
}

type ActiveCard struct {
	ID       int64
	PanLast4 string
	FullName string
}
