package port

import (
	"context"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

type CartRepository interface {
	// AddLine merges: an existing (user, product) line gets its quantity
	// increased, otherwise a new line is created
	AddLine(ctx context.Context, userID, productID string, qty int) error

	// SetLineQuantity replaces the quantity of an existing line; returns
	// domain.ErrNotFound when no such line exists
	SetLineQuantity(ctx context.Context, userID, productID string, qty int) error

	// RemoveLine deletes one line
	RemoveLine(ctx context.Context, userID, productID string) error

	// ListLines returns the user's cart lines
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)

	// Clear removes every line for the user
	Clear(ctx context.Context, userID string) error
}
