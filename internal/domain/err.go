package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrInactive          = errors.New("atm or card is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage failure")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSessionExpired    = errors.New("session expired")
	ErrInvalidCSRF       = errors.New("invalid csrf token")
)

// IsKnown reports whether err belongs to the withdrawal error taxonomy.
func IsKnown(err error) bool {
	for _, target := range []error{
		ErrInvalidRequest, ErrNotFound, ErrInactive, ErrInsufficientFunds,
		ErrStorage, ErrUnauthorized, ErrSessionExpired, ErrInvalidCSRF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
