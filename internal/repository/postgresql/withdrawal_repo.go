package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"

	"github.com/shopspring/decimal"
)

const authorizationQuery = `SELECT a.account_id, a.balance, a.currency, c.issuing_bank_id, c.status, atm.bank_id, atm.status
	FROM accounts a
	JOIN cards c ON c.account_id = a.account_id
	JOIN atms atm ON atm.atm_id = $1
	WHERE c.card_id = $2`

// Only the account row is locked; ATMs and cards are shared by many
// withdrawals and must not serialize unrelated accounts.
const authorizationForUpdateQuery = authorizationQuery + `
	FOR UPDATE OF a`

type ledgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) port.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) ResolveAuthorization(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	return r.resolve(ctx, authorizationQuery, atmID, cardID)
}

func (r *ledgerRepository) ResolveAuthorizationForUpdate(ctx context.Context, atmID, cardID int64) (*domain.Authorization, error) {
	if _, ok := getTr(ctx); !ok {
		return nil, fmt.Errorf("%w: exclusive read outside a unit of work", domain.ErrStorage)
	}
	return r.resolve(ctx, authorizationForUpdateQuery, atmID, cardID)
}

func (r *ledgerRepository) resolve(ctx context.Context, query string, atmID, cardID int64) (*domain.Authorization, error) {
	var (
		auth       domain.Authorization
		cardStatus string
		atmStatus  string
	)
	err := conn(ctx, r.db).QueryRowContext(ctx, query, atmID, cardID).Scan(
		&auth.AccountID, &auth.Balance, &auth.Currency, &auth.IssuingBankID, &cardStatus, &auth.ATMBankID, &atmStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: atm %d, card %d", domain.ErrNotFound, atmID, cardID)
	}
	if err != nil {
		return nil, storageErr("resolve authorization", err)
	}
	auth.CardStatus = domain.CardStatus(cardStatus)
	auth.ATMStatus = domain.ATMStatus(atmStatus)
	return &auth, nil
}

func (r *ledgerRepository) SetBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	const query = `UPDATE accounts SET balance = $1 WHERE account_id = $2`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, domain.RoundMoney(balance), accountID)
	if err != nil {
		return storageErr("set balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("set balance", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: account %d", domain.ErrNotFound, accountID)
	}
	return nil
}

func (r *ledgerRepository) AppendWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	const query = `INSERT INTO withdrawals (atm_id, card_id, account_id, amount, commission_amount, total_debit, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING withdrawal_id`

	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		w.ATMID, w.CardID, w.AccountID, w.Amount, w.Commission, w.Total, w.CreatedAt,
	).Scan(&w.ID)
	if err != nil {
		return storageErr("append withdrawal", err)
	}
	return nil
}
