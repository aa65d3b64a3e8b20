package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

type operationRepository struct {
	db *sql.DB
}

func NewOperationRepository(db *sql.DB) port.OperationRepository {
	return &operationRepository{db: db}
}

func (r *operationRepository) ListOperations(ctx context.Context, f domain.OperationFilter) ([]domain.Operation, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT w.withdrawal_id, w.atm_id, w.card_id, w.account_id, w.amount, w.commission_amount, w.total_debit, w.created_at,
	       customers.full_name, cards.pan_last4, card_bank.name, atms.location, atm_bank.name
	FROM withdrawals w
	JOIN atms ON atms.atm_id = w.atm_id
	JOIN banks atm_bank ON atm_bank.bank_id = atms.bank_id
	JOIN cards ON cards.card_id = w.card_id
	JOIN banks card_bank ON card_bank.bank_id = cards.issuing_bank_id
	JOIN accounts ON accounts.account_id = w.account_id
	JOIN customers ON customers.customer_id = accounts.customer_id
	WHERE 1=1`)

	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		fmt.Fprintf(&sb, " AND "+clause, len(args))
	}
	if f.ATMBankID != 0 {
		add("atm_bank.bank_id = $%d", f.ATMBankID)
	}
	if f.ATMID != 0 {
		add("atms.atm_id = $%d", f.ATMID)
	}
	if f.CardID != 0 {
		add("cards.card_id = $%d", f.CardID)
	}
	if !f.DateFrom.IsZero() {
		add("w.created_at >= $%d", startOfDay(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		add("w.created_at < $%d", startOfDay(f.DateTo).AddDate(0, 0, 1))
	}
	sb.WriteString(" ORDER BY w.created_at DESC, w.withdrawal_id DESC")

	rows, err := conn(ctx, r.db).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, storageErr("list operations", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		var op domain.Operation
		if err := rows.Scan(
			&op.ID, &op.ATMID, &op.CardID, &op.AccountID, &op.Amount, &op.Commission, &op.Total, &op.CreatedAt,
			&op.FullName, &op.PanLast4, &op.CardBank, &op.ATMLocation, &op.ATMBank,
		); err != nil {
			return nil, storageErr("scan operation", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list operations", err)
	}
	return ops, nil
}

func (r *operationRepository) ActiveATMs(ctx context.Context) ([]domain.ActiveATM, error) {
	const query = `SELECT atms.atm_id, atms.location, banks.name
	FROM atms JOIN banks ON banks.bank_id = atms.bank_id
	WHERE atms.status = 'active'
	ORDER BY atms.location, atms.atm_id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("active atms", err)
	}
	defer rows.Close()

	var out []domain.ActiveATM
	for rows.Next() {
		var a domain.ActiveATM
		if err := rows.Scan(&a.ID, &a.Location, &a.BankName); err != nil {
			return nil, storageErr("scan atm", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("active atms", err)
	}
	return out, nil
}

func (r *operationRepository) ActiveCards(ctx context.Context) ([]domain.ActiveCard, error) {
	const query = `SELECT cards.card_id, cards.pan_last4, customers.full_name
	FROM cards
	JOIN accounts ON accounts.account_id = cards.account_id
	JOIN customers ON customers.customer_id = accounts.customer_id
	WHERE cards.status = 'active'
	ORDER BY customers.full_name, cards.card_id`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("active cards", err)
	}
	defer rows.Close()

	var out []domain.ActiveCard
	for rows.Next() {
		var c domain.ActiveCard
		if err := rows.Scan(&c.ID, &c.PanLast4, &c.FullName); err != nil {
			return nil, storageErr("scan card", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("active cards", err)
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
