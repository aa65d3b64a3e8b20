package service

import (
	"context"
	"errors"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

// Authorizer resolves the account and bank identifiers a withdrawal needs.
// It only reads; status checks are left to the executor.
type Authorizer struct {
	ledger port.LedgerRepository
}

func NewAuthorizer(ledger port.LedgerRepository) *Authorizer {
	return &Authorizer{ledger: ledger}
}

// Authorize must be called with a ctx inside a unit of work so the snapshot
// belongs to the enclosing transaction.
func (a *Authorizer) Authorize(ctx context.Context, iso Isolation, atmID, cardID int64) (*domain.Authorization, error) {
	auth, err := iso.Resolve(ctx, a.ledger, atmID, cardID)
	if err != nil {
		return nil, err
	}
	if auth == nil {
		return nil, fmt.Errorf("%w: atm %d, card %d", domain.ErrNotFound, atmID, cardID)
	}
	return auth, nil
}

// checkUsable rejects inactive ATMs and blocked cards.
func checkUsable(auth *domain.Authorization) error {
	var errs []error
	if auth.ATMStatus != domain.ATMActive {
		errs = append(errs, fmt.Errorf("atm is %s", auth.ATMStatus))
	}
	if auth.CardStatus != domain.CardActive {
		errs = append(errs, fmt.Errorf("card is %s", auth.CardStatus))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInactive, errors.Join(errs...))
}
