package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

// CatalogService covers the one catalog mutation this subsystem owns:
// product deletion, which must respect order history.
type CatalogService struct {
	products port.ProductRepository
	logger   *zap.Logger
}

func NewCatalogService(products port.ProductRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{products: products, logger: logger}
}

// DeleteProduct hard-deletes when nothing references the product, else
// archives it so past orders keep a valid foreign key. Returns true when
// the product was archived rather than removed.
func (s *CatalogService) DeleteProduct(ctx context.Context, callerID string, isAdmin bool, productID string) (bool, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	if !isAdmin && p.SellerID != callerID {
		return false, fmt.Errorf("%w: not your product", domain.ErrForbidden)
	}

	archived, err := s.products.DeleteProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if archived {
		s.logger.Info("product archived instead of deleted",
			zap.String("product_id", productID))
	}
	return archived, nil
}
