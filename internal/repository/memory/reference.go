package memory

import (
	"context"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/repository/migration"
)

// Reference data is maintained elsewhere; these setters exist to load it.

func (s *Store) PutBank(b domain.Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[b.ID] = b
}

func (s *Store) PutCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

func (s *Store) PutAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Balance = domain.RoundMoney(a.Balance)
	s.accounts[a.ID] = a
}

func (s *Store) PutCard(c domain.Card) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[c.AccountID]; !ok {
		return fmt.Errorf("%w: account %d", domain.ErrNotFound, c.AccountID)
	}
	s.cards[c.ID] = c
	return nil
}

func (s *Store) PutATM(a domain.ATM) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atms[a.ID] = a
}

func (s *Store) PutOperator(o domain.Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operators[o.Username] = o
}

// Load inserts a whole dataset, accounts before cards.
func (s *Store) Load(d migration.Dataset) error {
	for _, b := range d.Banks {
		s.PutBank(b)
	}
	for _, c := range d.Customers {
		s.PutCustomer(c)
	}
	for _, a := range d.Accounts {
		s.PutAccount(a)
	}
	for _, c := range d.Cards {
		if err := s.PutCard(c); err != nil {
			return fmt.Errorf("load card %d: %w", c.ID, err)
		}
	}
	for _, a := range d.ATMs {
		s.PutATM(a)
	}
	for _, o := range d.Operators {
		s.PutOperator(o)
	}
	return nil
}

func (s *Store) CardInfo(ctx context.Context, cardID int64) (*domain.CardInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}
	bank, okBank := s.banks[card.IssuingBankID]
	acc, okAcc := s.accounts[card.AccountID]
	if !okBank || !okAcc {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}
	cust, ok := s.customers[acc.CustomerID]
	if !ok {
		return nil, fmt.Errorf("%w: card %d", domain.ErrNotFound, cardID)
	}

	return &domain.CardInfo{
		CardID:      card.ID,
		PanLast4:    card.PanLast4,
		IssuingBank: bank.Name,
		Balance:     acc.Balance,
		Currency:    acc.Currency,
		FullName:    cust.FullName,
	}, nil
}

func (s *Store) ListOperations(ctx context.Context, f domain.OperationFilter) ([]domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ops := make([]domain.Operation, 0, len(s.withdrawals))
	for _, w := range s.withdrawals {
		atm, okATM := s.atms[w.ATMID]
		card, okCard := s.cards[w.CardID]
		acc, okAcc := s.accounts[w.AccountID]
		if !okATM || !okCard || !okAcc {
			continue
		}
		if f.ATMBankID != 0 && atm.BankID != f.ATMBankID {
			continue
		}
		if f.ATMID != 0 && atm.ID != f.ATMID {
			continue
		}
		if f.CardID != 0 && card.ID != f.CardID {
			continue
		}
		if !f.DateFrom.IsZero() && w.CreatedAt.Before(startOfDay(f.DateFrom)) {
			continue
		}
		if !f.DateTo.IsZero() && !w.CreatedAt.Before(startOfDay(f.DateTo).AddDate(0, 0, 1)) {
			continue
		}
		ops = append(ops, domain.Operation{
			Withdrawal:  w,
			FullName:    s.customers[acc.CustomerID].FullName,
			PanLast4:    card.PanLast4,
			CardBank:    s.banks[card.IssuingBankID].Name,
			ATMLocation: atm.Location,
			ATMBank:     s.banks[atm.BankID].Name,
		})
	}
	sortOperations(ops)
	return ops, nil
}

func (s *Store) ActiveATMs(ctx context.Context) ([]domain.ActiveATM, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActiveATM
	for _, a := range s.atms {
		if a.Status != domain.ATMActive {
			continue
		}
		out = append(out, domain.ActiveATM{ID: a.ID, Location: a.Location, BankName: s.banks[a.BankID].Name})
	}
	sortBy(out, func(a, b domain.ActiveATM) bool {
		if a.Location == b.Location {
			return a.ID < b.ID
		}
		return a.Location < b.Location
	})
	return out, nil
}

func (s *Store) ActiveCards(ctx context.Context) ([]domain.ActiveCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ActiveCard
	for _, c := range s.cards {
		if c.Status != domain.CardActive {
			continue
		}
		name := s.customers[s.accounts[c.AccountID].CustomerID].FullName
		out = append(out, domain.ActiveCard{ID: c.ID, PanLast4: c.PanLast4, FullName: name})
	}
	sortBy(out, func(a, b domain.ActiveCard) bool {
		if a.FullName == b.FullName {
			return a.ID < b.ID
		}
		return a.FullName < b.FullName
	})
	return out, nil
}

func (s *Store) OperatorByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.operators[username]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", domain.ErrNotFound, username)
	}
	return &op, nil
}
