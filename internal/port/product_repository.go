package port

import (
	"context"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

type ProductRepository interface {
	// GetProduct retrieves a product by ID, nil if absent
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProducts retrieves all listed products in one read; missing IDs
	// are simply absent from the result
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)

	// DeleteProduct hard-deletes when no order items reference the
	// product, else archives it; returns true when archived
	DeleteProduct(ctx context.Context, id string) (archived bool, err error)
}
