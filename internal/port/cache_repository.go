package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// IdempotencySeen reports whether the key was already set, without setting it
	IdempotencySeen(ctx context.Context, key string) (bool, error)

	// CacheOrderStatus stores an order's status, together with its buyer
	// so status reads can be authorized without touching storage
	CacheOrderStatus(ctx context.Context, orderID, buyerID, status string) error

	// CachedOrderStatus returns the cached buyer and status, empty
	// strings on miss
	CachedOrderStatus(ctx context.Context, orderID string) (buyerID, status string, err error)

	// InvalidateOrderStatus drops the cached status after a transition
	InvalidateOrderStatus(ctx context.Context, orderID string) error
}
