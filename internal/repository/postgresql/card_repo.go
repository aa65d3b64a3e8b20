package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

type cardRepository struct {
	db *sql.DB
}

func NewCardInfoRepository(db *sql.DB) port.CardInfoRepository {
	return &cardRepository{db: db}
}

// CardInfo reads card, issuer, account and customer in one statement so the
// balance and names come from a single snapshot.
func (r *cardRepository) CardInfo(ctx context.Context, cardID int64) (*domain.CardInfo, error) {
	const query = `SELECT cards.card_id, cards.pan_last4, banks.name, accounts.balance, accounts.currency, customers.full_name
	FROM cards
	JOIN banks ON banks.bank_id = cards.issuing_bank_id
	JOIN accounts ON accounts.account_id = cards.account_id
	JOIN customers ON customers.customer_id = accounts.customer_id
	WHERE cards.card_id = $1`

	var info domain.CardInfo
	err := conn(ctx, r.db).QueryRowContext(ctx, query, cardID).Scan(
		&info.CardID, &info.PanLast4, &info.IssuingBank, &info.Balance, &info.Currency, &info.FullName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}
	if err != nil {
		return nil, storageErr("card info", err)
	}
	return &info, nil
}
