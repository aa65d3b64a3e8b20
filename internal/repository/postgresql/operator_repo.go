package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

type operatorRepository struct {
	db *sql.DB
}

func NewOperatorRepository(db *sql.DB) port.OperatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) OperatorByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	const query = `SELECT operator_id, username, password_hash, role FROM operators WHERE username = $1`

	var op domain.Operator
	err := conn(ctx, r.db).QueryRowContext(ctx, query, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: operator %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return nil, storageErr("operator by username", err)
	}
	return &op, nil
}
