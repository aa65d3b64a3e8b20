package service

import (
	"context"
	"fmt"

	"atmledger/internal/domain"
	"atmledger/internal/port"
)

type cardInfoService struct {
	cards port.CardInfoRepository
}

func NewCardInfoService(cards port.CardInfoRepository) port.CardInfoService {
	return &cardInfoService{cards: cards}
}

// Lookup is display only; its result never feeds a balance mutation.
func (s *cardInfoService) Lookup(ctx context.Context, cardID int64) (*domain.CardInfo, error) {
	if cardID <= 0 {
		return nil, fmt.Errorf("%w: card_id must be positive", domain.ErrInvalidRequest)
	}
	return s.cards.CardInfo(ctx, cardID)
}
