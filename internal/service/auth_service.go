package service

import (
	"context"
	"errors"

	"atmledger/internal/domain"
	"atmledger/internal/port"

	"golang.org/x/crypto/bcrypt"
)

type authService struct {
	operators port.OperatorRepository
}

func NewAuthService(operators port.OperatorRepository) port.AuthService {
	return &authService{operators: operators}
}

func (s *authService) Login(ctx context.Context, username, password string) (*domain.Identity, error) {
	op, err := s.operators.OperatorByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Identity{OperatorID: op.ID, Username: op.Username, Role: op.Role}, nil
}
