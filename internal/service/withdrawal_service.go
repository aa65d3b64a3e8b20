package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atmledger/internal/domain"
	"atmledger/internal/logger"
	"atmledger/internal/port"

	"github.com/shopspring/decimal"
)

const (
	OutcomeSuccess           = "success"
	OutcomeInvalid           = "invalid_request"
	OutcomeNotFound          = "not_found"
	OutcomeInactive          = "inactive"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeUnauthorized      = "unauthorized"
	OutcomeStorageError      = "storage_error"
)

type withdrawalService struct {
	uow        port.UnitOfWork
	ledger     port.LedgerRepository
	authorizer *Authorizer
	policy     CommissionPolicy
	metrics    port.MetricsRecorder
	now        func() time.Time
}

func NewWithdrawalService(
	uow port.UnitOfWork,
	ledger port.LedgerRepository,
	policy CommissionPolicy,
	metrics port.MetricsRecorder,
) port.WithdrawalService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &withdrawalService{
		uow:        uow,
		ledger:     ledger,
		authorizer: NewAuthorizer(ledger),
		policy:     policy,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *withdrawalService) Execute(ctx context.Context, caller domain.Identity, req *domain.WithdrawalReq) (*domain.WithdrawalResult, error) {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeSerialized
	}

	log := logger.FromContext(ctx).With().
		Str("operator", caller.Username).
		Str("mode", string(mode)).
		Int64("atm_id", req.ATMID).
		Int64("card_id", req.CardID).
		Str("amount", loggableAmount(req.Amount)).
		Logger()

	result, err := s.execute(ctx, caller, req, mode)

	commission := decimal.Zero
	if result != nil {
		commission = result.Commission
	}
	s.metrics.RecordWithdrawal(mode, Outcome(err), time.Since(start), commission)

	switch {
	case err == nil:
		log.Info().
			Int64("withdrawal_id", result.WithdrawalID).
			Int64("account_id", result.AccountID).
			Str("commission", result.Commission.StringFixed(domain.MoneyPlaces)).
			Str("total", result.Total.StringFixed(domain.MoneyPlaces)).
			Msg("withdrawal completed")
	case errors.Is(err, domain.ErrStorage):
		log.Error().Err(err).Msg("withdrawal aborted")
	default:
		log.Warn().Err(err).Msg("withdrawal rejected")
	}
	return result, err
}

func (s *withdrawalService) execute(ctx context.Context, caller domain.Identity, req *domain.WithdrawalReq, mode domain.Mode) (*domain.WithdrawalResult, error) {
	if caller.OperatorID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	if req.ATMID <= 0 || req.CardID <= 0 {
		return nil, fmt.Errorf("%w: atm_id and card_id must be positive", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	iso, err := IsolationFor(mode)
	if err != nil {
		return nil, err
	}

	var result *domain.WithdrawalResult

	err = s.uow.Do(ctx, func(txCtx context.Context) error {
		auth, err := s.authorizer.Authorize(txCtx, iso, req.ATMID, req.CardID)
		if err != nil {
			return err
		}
		if err := checkUsable(auth); err != nil {
			return err
		}

		rate := s.policy.Rate(auth.IssuingBankID, auth.ATMBankID)
		commission, total := s.policy.Quote(req.Amount, rate)

		if auth.Balance.LessThan(total) {
			return fmt.Errorf("%w: balance %s, required %s",
				domain.ErrInsufficientFunds, auth.Balance.StringFixed(domain.MoneyPlaces), total.StringFixed(domain.MoneyPlaces))
		}

		// The new balance is derived from the balance observed above. Under
		// noLock that observation may already be stale.
		if err := s.ledger.SetBalance(txCtx, auth.AccountID, auth.Balance.Sub(total)); err != nil {
			return err
		}

		w := &domain.Withdrawal{
			ATMID:      req.ATMID,
			CardID:     req.CardID,
			AccountID:  auth.AccountID,
			Amount:     req.Amount,
			Commission: commission,
			Total:      total,
			CreatedAt:  s.now(),
		}
		if err := s.ledger.AppendWithdrawal(txCtx, w); err != nil {
			return err
		}

		result = &domain.WithdrawalResult{
			WithdrawalID: w.ID,
			AccountID:    auth.AccountID,
			Commission:   commission,
			Total:        total,
			Mode:         iso.Mode(),
			Message:      completionMessage(iso.Mode()),
		}
		return nil
	})
	if err != nil {
		if !domain.IsKnown(err) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return nil, err
	}

	return result, nil
}

// loggableAmount avoids expanding an out-of-range exponent into a huge string.
func loggableAmount(amount decimal.Decimal) string {
	if domain.ValidateAmount(amount) != nil {
		return fmt.Sprintf("%se%d", amount.Coefficient(), amount.Exponent())
	}
	return amount.StringFixed(domain.MoneyPlaces)
}

func completionMessage(mode domain.Mode) string {
	if mode == domain.ModeUnserialized {
		return "withdrawal completed without account locking (demo)"
	}
	return "withdrawal completed"
}

// Outcome buckets err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidRequest):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInactive):
		return OutcomeInactive
	case errors.Is(err, domain.ErrInsufficientFunds):
		return OutcomeInsufficientFunds
	case errors.Is(err, domain.ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeStorageError
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordWithdrawal(domain.Mode, string, time.Duration, decimal.Decimal) {}
