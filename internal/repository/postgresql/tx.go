package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"

	"github.com/lib/pq"
)

type ctxtype string

const (
	trKey ctxtype = "tx"
)

var (
	uniqueConstraint pq.ErrorCode = "23505"
	checkConstraint  pq.ErrorCode = "23514"
	fkConstraint     pq.ErrorCode = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTr(ctx context.Context) (*sql.Tx, bool) {
	tr, ok := ctx.Value(trKey).(*sql.Tx)
	return tr, ok
}

func conn(ctx context.Context, db *sql.DB) querier {
	if tr, ok := getTr(ctx); ok {
		return tr
	}
	return db
}

type txManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) port.UnitOfWork {
	return &txManager{db: db}
}

// Do opens a READ COMMITTED transaction, hands it to fn through ctx and
// commits when fn succeeds. Row locking is left to the statements.
func (m *txManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := getTr(ctx); ok {
		return fn(ctx)
	}

	tr, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storageErr("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tr.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, trKey, tr)); err != nil {
		_ = tr.Rollback()
		return err
	}

	if err := tr.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

// storageErr wraps a driver fault so callers can match domain.ErrStorage.
func storageErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueConstraint, checkConstraint, fkConstraint:
			return fmt.Errorf("%w: %s: constraint %s violated: %w", domain.ErrStorage, op, pqErr.Constraint, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
