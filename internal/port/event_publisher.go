package port

import "context"

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderCancelled   = "OrderCancelled"
	EventPaymentSucceeded = "PaymentSucceeded"
	EventPaymentFailed    = "PaymentFailed"
)

type EventPublisher interface {
	// Publish emits a domain event, keyed so all events for one order
	// land on the same partition. Best-effort: callers log failures but
	// never fail the request on them.
	Publish(ctx context.Context, eventType, key string, payload any) error
}
