package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

// CartService manages the advisory cart. It never reserves stock and
// never blocks on it — a line's quantity may exceed what's in stock,
// and checkout is where hard validation happens.
type CartService struct {
	carts    port.CartRepository
	products port.ProductRepository
	logger   *zap.Logger
}

func NewCartService(carts port.CartRepository, products port.ProductRepository, logger *zap.Logger) *CartService {
	return &CartService{carts: carts, products: products, logger: logger}
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidState)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if !p.IsActive {
		return fmt.Errorf("%w: product %s is not active", domain.ErrInvalidState, productID)
	}

	return s.carts.AddLine(ctx, userID, productID, qty)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidState)
	}
	return s.carts.SetLineQuantity(ctx, userID, productID, qty)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.carts.RemoveLine(ctx, userID, productID)
}

func (s *CartService) GetCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.carts.ListLines(ctx, userID)
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}
