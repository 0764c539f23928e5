package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

var ErrEmptyOrder = errors.New("order has no items")

type ItemInput struct {
	ProductID string
	Quantity  int
}

type OrderService struct {
	products  port.ProductRepository
	orders    port.OrderRepository
	cache     port.CacheRepository
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewOrderService(
	products port.ProductRepository,
	orders port.OrderRepository,
	cache port.CacheRepository,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		products:  products,
		orders:    orders,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

type orderCreatedPayload struct {
	OrderID     string `json:"order_id"`
	BuyerID     string `json:"buyer_id"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

type orderCancelledPayload struct {
	OrderID string `json:"order_id"`
	BuyerID string `json:"buyer_id"`
}

// CreateOrder converts requested items into a durable order with frozen
// prices, reserving stock atomically. Either everything commits or
// nothing does.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID, currency string, items []ItemInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	// Aggregate duplicate lines so one request cannot double-count a product.
	wanted := make(map[string]int)
	order := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			return nil, fmt.Errorf("%w: invalid item quantity", domain.ErrInvalidState)
		}
		if _, seen := wanted[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		wanted[it.ProductID] += it.Quantity
	}

	products, err := s.products.GetProducts(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var total int64
	orderItems := make([]domain.OrderItem, 0, len(order))
	for _, productID := range order {
		p, ok := byID[productID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		qty := wanted[productID]

		if !p.IsActive {
			return nil, fmt.Errorf("%w: product %s is not active", domain.ErrInvalidState, p.ID)
		}
		if p.SellerID == buyerID {
			return nil, fmt.Errorf("%w: cannot buy your own product", domain.ErrForbidden)
		}
		if p.IsSold || p.Stock <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrOutOfStock, p.ID)
		}
		if qty > p.Stock {
			return nil, &domain.StockShortageError{ProductID: p.ID, Requested: qty, Available: p.Stock}
		}

		unit := p.UnitPrice()
		total += unit * int64(qty)
		orderItems = append(orderItems, domain.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   p.ID,
			ProductName: p.Title,
			Quantity:    qty,
			UnitPrice:   unit,
		})
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:            uuid.NewString(),
		BuyerID:       buyerID,
		Currency:      currency,
		TotalAmount:   total,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStateUnpaid,
		Items:         orderItems,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	if err := s.orders.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	if err := s.cache.CacheOrderStatus(ctx, o.ID, o.BuyerID, string(o.Status)); err != nil {
		s.logger.Warn("cache order status failed", zap.String("order_id", o.ID), zap.Error(err))
	}
	s.publish(ctx, port.EventOrderCreated, o.ID, orderCreatedPayload{
		OrderID: o.ID, BuyerID: o.BuyerID, TotalAmount: o.TotalAmount, Currency: o.Currency,
	})

	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, callerID string, isAdmin bool, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if !isAdmin && o.BuyerID != callerID {
		return nil, fmt.Errorf("%w: not your order", domain.ErrForbidden)
	}
	return o, nil
}

// GetOrderStatus serves the hot status read through the cache, falling
// back to storage on a miss. Visibility matches GetOrder: buyer or
// admin only, on both paths.
func (s *OrderService) GetOrderStatus(ctx context.Context, callerID string, isAdmin bool, orderID string) (domain.OrderStatus, error) {
	if buyerID, cached, err := s.cache.CachedOrderStatus(ctx, orderID); err == nil && cached != "" {
		if !isAdmin && buyerID != callerID {
			return "", fmt.Errorf("%w: not your order", domain.ErrForbidden)
		}
		return domain.OrderStatus(cached), nil
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if o == nil {
		return "", fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if !isAdmin && o.BuyerID != callerID {
		return "", fmt.Errorf("%w: not your order", domain.ErrForbidden)
	}
	if err := s.cache.CacheOrderStatus(ctx, orderID, o.BuyerID, string(o.Status)); err != nil {
		s.logger.Warn("cache order status failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return o.Status, nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.orders.ListBySeller(ctx, sellerID)
}

// UpdateStatus applies an admin-driven transition. Backward moves are
// rejected before touching storage.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) error {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if !domain.CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, to)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, o.Status, to); err != nil {
		return err
	}
	if err := s.cache.InvalidateOrderStatus(ctx, orderID); err != nil {
		s.logger.Warn("invalidate order status failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

// CancelOrder restores reserved stock and moves the order to CANCELLED.
func (s *OrderService) CancelOrder(ctx context.Context, callerID string, isAdmin bool, orderID string) error {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if !isAdmin && o.BuyerID != callerID {
		return fmt.Errorf("%w: not your order", domain.ErrForbidden)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order is %s", domain.ErrInvalidState, o.Status)
	}

	if err := s.orders.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	if err := s.cache.InvalidateOrderStatus(ctx, orderID); err != nil {
		s.logger.Warn("invalidate order status failed", zap.String("order_id", orderID), zap.Error(err))
	}
	s.publish(ctx, port.EventOrderCancelled, orderID, orderCancelledPayload{OrderID: orderID, BuyerID: o.BuyerID})
	return nil
}

// DeleteOrder is the admin hard delete: stock comes back, rows go away.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	if err := s.cache.InvalidateOrderStatus(ctx, orderID); err != nil {
		s.logger.Warn("invalidate order status failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

func (s *OrderService) publish(ctx context.Context, eventType, key string, payload any) {
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
