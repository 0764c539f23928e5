package port

import (
	"context"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
)

type PaymentRepository interface {
	// CreatePayment inserts a PENDING payment row
	CreatePayment(ctx context.Context, p *domain.Payment) error

	// GetByReference resolves a provider reference, nil if absent
	GetByReference(ctx context.Context, reference string) (*domain.Payment, error)

	// LatestForOrder returns the most recent payment for an order, nil if none
	LatestForOrder(ctx context.Context, orderID string) (*domain.Payment, error)

	// AttachReference records the provider-issued reference on the payment
	AttachReference(ctx context.Context, paymentID, reference string) error

	// DeletePayment removes a stale pending payment
	DeletePayment(ctx context.Context, paymentID string) error

	// ApplySuccess transitions the payment to SUCCESS, appends the event
	// to its history and, when linked, marks the order PAID and advances
	// PENDING to CONFIRMED — all in one transaction. Returns false when
	// the payment is already terminal (idempotent no-op).
	ApplySuccess(ctx context.Context, reference string, ev domain.PaymentEvent) (applied bool, err error)

	// ApplyFailure transitions the payment to FAILED and, when linked,
	// marks the order payment state FAILED. Order status is untouched.
	ApplyFailure(ctx context.Context, reference string, ev domain.PaymentEvent) (applied bool, err error)
}
