package port

import (
	"context"
	"time"

	"atmledger/internal/domain"

	"github.com/shopspring/decimal"
)

type WithdrawalService interface {
	Execute(ctx context.Context, caller domain.Identity, req *domain.WithdrawalReq) (*domain.WithdrawalResult, error)
}

type CardInfoService interface {
	Lookup(ctx context.Context, cardID int64) (*domain.CardInfo, error)
}

type OperationService interface {
	List(ctx context.Context, filter domain.OperationFilter) ([]domain.Operation, error)
	ActiveATMs(ctx context.Context) ([]domain.ActiveATM, error)
	ActiveCards(ctx context.Context) ([]domain.ActiveCard, error)
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*domain.Identity, error)
}

type MetricsRecorder interface {
	RecordWithdrawal(mode domain.Mode, outcome string, took time.Duration, commission decimal.Decimal)
}
