package port

import (
	"context"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order and its items and reserves stock via
	// conditional decrements, all in one transaction. Returns
	// *domain.StockShortageError when any decrement would go negative.
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves an order with its items, nil if absent
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListByBuyer returns orders placed by the given buyer
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)

	// ListBySeller returns orders containing items sold by the given seller
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)

	// UpdateStatus applies from->to with a guarded update; returns
	// domain.ErrInvalidTransition if the row no longer holds `from`
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error

	// CancelOrder restores stock for every item and sets CANCELLED in one
	// transaction; fails with domain.ErrInvalidState on terminal orders
	CancelOrder(ctx context.Context, id string) error

	// DeleteOrder restores stock and removes the order and its items in
	// one transaction (admin hard delete)
	DeleteOrder(ctx context.Context, id string) error
}
