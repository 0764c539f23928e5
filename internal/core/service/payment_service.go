package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

type PaymentService struct {
	payments    port.PaymentRepository
	orders      port.OrderRepository
	users       port.UserRepository
	gateway     port.PaymentGateway
	logger      *zap.Logger
	callbackURL string
}

func NewPaymentService(
	payments port.PaymentRepository,
	orders port.OrderRepository,
	users port.UserRepository,
	gateway port.PaymentGateway,
	logger *zap.Logger,
	callbackURL string,
) *PaymentService {
	return &PaymentService{
		payments:    payments,
		orders:      orders,
		users:       users,
		gateway:     gateway,
		logger:      logger,
		callbackURL: callbackURL,
	}
}

type InitiatePaymentResult struct {
	Payment          *domain.Payment
	AuthorizationURL string
	Reused           bool
}

// InitiatePayment creates a fresh PENDING payment for the order and asks
// the provider for an authorization URL. A prior pending payment is
// discarded first — provider references are single-use, so a stale
// authorization URL must never be handed out again. A prior terminal
// payment is returned as-is.
func (s *PaymentService) InitiatePayment(ctx context.Context, callerID, orderID string) (*InitiatePaymentResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if order.BuyerID != callerID {
		return nil, fmt.Errorf("%w: not your order", domain.ErrForbidden)
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus == domain.PaymentStatePaid {
		return nil, fmt.Errorf("%w: order is no longer payable", domain.ErrInvalidState)
	}

	if prev, err := s.payments.LatestForOrder(ctx, orderID); err != nil {
		return nil, err
	} else if prev != nil {
		if prev.Status.Terminal() {
			return &InitiatePaymentResult{Payment: prev, Reused: true}, nil
		}
		if err := s.payments.DeletePayment(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("discard stale payment: %w", err)
		}
	}

	email, err := s.users.GetEmail(ctx, order.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("resolve buyer email: %w", err)
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:        uuid.NewString(),
		UserID:    order.BuyerID,
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Currency:  order.Currency,
		Status:    domain.PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	reference := newPaymentReference(order.ID)
	resp, err := s.gateway.Initialize(ctx, port.InitializeRequest{
		Email:       email,
		AmountMinor: order.TotalAmount,
		Reference:   reference,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		// The payment row stays PENDING with no reference: not yet linked
		// to money movement, and the caller can retry initiation.
		s.logger.Warn("gateway initialize failed",
			zap.String("order_id", orderID),
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := s.payments.AttachReference(ctx, payment.ID, resp.Reference); err != nil {
		return nil, fmt.Errorf("attach reference: %w", err)
	}
	payment.ProviderReference = resp.Reference

	return &InitiatePaymentResult{
		Payment:          payment,
		AuthorizationURL: resp.AuthorizationURL,
	}, nil
}

// newPaymentReference builds a provider-unique reference. The suffix
// keeps retries for the same order distinct.
func newPaymentReference(orderID string) string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("PAY-%s-%s", orderID, suffix)
}
