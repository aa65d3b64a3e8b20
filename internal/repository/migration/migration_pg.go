package migration

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/rs/zerolog"
)

//go:embed init.sql
var initSQL string

func RunMigrations(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	if _, err := db.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Msg("migrations completed")
	return nil
}

// Seed inserts d with its explicit identifiers and moves the sequences past
// them. Rows that already exist are left alone.
func Seed(ctx context.Context, db *sql.DB, d Dataset, log zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, b := range d.Banks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO banks (bank_id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			b.ID, b.Name); err != nil {
			return fmt.Errorf("seed bank %d: %w", b.ID, err)
		}
	}
	for _, c := range d.Customers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO customers (customer_id, bank_id, full_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			c.ID, c.BankID, c.FullName); err != nil {
			return fmt.Errorf("seed customer %d: %w", c.ID, err)
		}
	}
	for _, a := range d.Accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (account_id, customer_id, balance, currency) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			a.ID, a.CustomerID, a.Balance, a.Currency); err != nil {
			return fmt.Errorf("seed account %d: %w", a.ID, err)
		}
	}
	for _, c := range d.Cards {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cards (card_id, account_id, issuing_bank_id, pan_last4, exp_date, status)
			 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			c.ID, c.AccountID, c.IssuingBankID, c.PanLast4, c.ExpDate, string(c.Status)); err != nil {
			return fmt.Errorf("seed card %d: %w", c.ID, err)
		}
	}
	for _, a := range d.ATMs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO atms (atm_id, bank_id, location, status) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			a.ID, a.BankID, a.Location, string(a.Status)); err != nil {
			return fmt.Errorf("seed atm %d: %w", a.ID, err)
		}
	}
	for _, o := range d.Operators {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO operators (operator_id, username, password_hash, role) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			o.ID, o.Username, o.PasswordHash, o.Role); err != nil {
			return fmt.Errorf("seed operator %q: %w", o.Username, err)
		}
	}

	for _, seq := range []struct{ table, column string }{
		{"banks", "bank_id"},
		{"customers", "customer_id"},
		{"accounts", "account_id"},
		{"cards", "card_id"},
		{"atms", "atm_id"},
		{"operators", "operator_id"},
	} {
		q := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%[1]s', '%[2]s'), COALESCE(MAX(%[2]s), 1)) FROM %[1]s`, seq.table, seq.column)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("advance %s sequence: %w", seq.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	log.Info().Int("banks", len(d.Banks)).Int("cards", len(d.Cards)).Msg("demo data seeded")
	return nil
}
