package service

import (
	"context"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

// Isolation decides how the authorization read protects the account row
// between the funds check and the debit.
type Isolation interface {
	Mode() domain.Mode
	Resolve(ctx context.Context, ledger port.LedgerRepository, atmID, cardID int64) (*domain.Authorization, error)
}

// exclusiveRowLock holds the account row lock until the unit of work ends.
type exclusiveRowLock struct{}

func (exclusiveRowLock) Mode() domain.Mode { return domain.ModeSerialized }

func (exclusiveRowLock) Resolve(ctx context.Context, ledger port.LedgerRepository, atmID, cardID int64) (*domain.Authorization, error) {
	return ledger.ResolveAuthorizationForUpdate(ctx, atmID, cardID)
}

// noLock reads the balance without any lock. Two concurrent withdrawals on
// one account can both see the pre-debit balance and one debit is lost.
// Kept on purpose to demonstrate the race.
type noLock struct{}

func (noLock) Mode() domain.Mode { return domain.ModeUnserialized }

func (noLock) Resolve(ctx context.Context, ledger port.LedgerRepository, atmID, cardID int64) (*domain.Authorization, error) {
	return ledger.ResolveAuthorization(ctx, atmID, cardID)
}

func IsolationFor(mode domain.Mode) (Isolation, error) {
	switch mode {
	case domain.ModeSerialized, "":
		return exclusiveRowLock{}, nil
	case domain.ModeUnserialized:
		return noLock{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidRequest, mode)
	}
}
