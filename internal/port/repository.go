package port

import (
	"context"

	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
)

// UnitOfWork runs fn atomically. Every repository call made with the ctx
// passed to fn joins the same transaction; a non-nil error from fn rolls
// everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type LedgerRepository interface {
	// ResolveAuthorization reads the card/account/ATM join without locking.
	ResolveAuthorization(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error)
	// ResolveAuthorizationForUpdate reads the same join and holds an
	// exclusive lock on the account row until the unit of work ends.
	ResolveAuthorizationForUpdate(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error)
	SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	AppendWithdrawal(ctx context.Context, w *domain.Withdrawal) error
}

type CardInfoRepository interface {
	CardInfo(ctx context.Context, cardID int64) (*domain.CardInfo, error)
}

type OperationRepository interface {
	ListOperations(ctx context.Context, filter domain.OperationFilter) ([]domain.Operation, error)
	ActiveATMs(ctx context.Context) ([]domain.ActiveATM, error)
	ActiveCards(ctx context.Context) ([]domain.ActiveCard, error)
}

type OperatorRepository interface {
	OperatorByUsername(ctx context.Context, username string) (*domain.Operator, error)
}
