package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Ack is what the provider (or a manual caller) gets back. ok:false with
// a reason is still an acknowledgement — the provider must not be made to
// retry a reference that will never resolve.
type Ack struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ReconcileService applies terminal payment outcomes exactly once per
// provider reference. Webhook delivery is at-least-once and unordered;
// duplicates are benign no-ops.
type ReconcileService struct {
	payments   port.PaymentRepository
	gateway    port.PaymentGateway
	cache      port.CacheRepository
	publisher  port.EventPublisher
	logger     *zap.Logger
	production bool
}

func NewReconcileService(
	payments port.PaymentRepository,
	gateway port.PaymentGateway,
	cache port.CacheRepository,
	publisher port.EventPublisher,
	logger *zap.Logger,
	production bool,
) *ReconcileService {
	return &ReconcileService{
		payments:   payments,
		gateway:    gateway,
		cache:      cache,
		publisher:  publisher,
		logger:     logger,
		production: production,
	}
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaidAt    string `json:"paid_at"`
		Channel   string `json:"channel"`
	} `json:"data"`
}

// HandleWebhook verifies and applies one pushed provider event. The
// signature is computed over the raw body bytes exactly as received.
func (s *ReconcileService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (Ack, error) {
	if !s.gateway.ValidateSignature(rawBody, signature) {
		if s.production {
			return Ack{}, domain.ErrSignatureInvalid
		}
		// Relaxed mode for local testing only.
		s.logger.Warn("accepting webhook with missing or invalid signature (non-production)")
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return Ack{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Data.Reference == "" {
		return Ack{}, fmt.Errorf("%w: missing reference", ErrMalformedEvent)
	}

	event := domain.PaymentEvent{
		Kind:       classify(ev.Event, ev.Data.Status),
		Reference:  ev.Data.Reference,
		Amount:     ev.Data.Amount,
		PaidAt:     ev.Data.PaidAt,
		Channel:    ev.Data.Channel,
		Raw:        json.RawMessage(rawBody),
		ObservedAt: time.Now().UTC(),
	}
	return s.apply(ctx, event)
}

// VerifyByReference pulls the provider-side status for a reference and
// applies it through the same idempotent path as webhooks. Gateway
// network errors propagate as retryable.
func (s *ReconcileService) VerifyByReference(ctx context.Context, reference string) (Ack, error) {
	// Only references we issued are worth a provider round trip.
	known, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return Ack{}, err
	}
	if known == nil {
		return Ack{OK: false, Reason: "not_found"}, nil
	}

	resp, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return Ack{}, err
	}

	event := domain.PaymentEvent{
		Kind:       classify("", resp.Status),
		Reference:  resp.Reference,
		Amount:     resp.Amount,
		PaidAt:     resp.PaidAt,
		Channel:    resp.Channel,
		ObservedAt: time.Now().UTC(),
	}
	if event.Reference == "" {
		event.Reference = reference
	}
	return s.apply(ctx, event)
}

func (s *ReconcileService) apply(ctx context.Context, event domain.PaymentEvent) (Ack, error) {
	if event.Kind == domain.PaymentEventUnknown {
		s.logger.Info("ignoring non-terminal payment event",
			zap.String("reference", event.Reference))
		return Ack{OK: true, Message: "ignored"}, nil
	}

	// Fast path: a reference we already settled. The storage transaction
	// below re-checks, so losing this cache entry is harmless.
	doneKey := "webhook:done:" + event.Reference
	if seen, err := s.cache.IdempotencySeen(ctx, doneKey); err == nil && seen {
		return Ack{OK: true, Message: "Already processed"}, nil
	}

	var applied bool
	var err error
	switch event.Kind {
	case domain.PaymentEventSuccess:
		applied, err = s.payments.ApplySuccess(ctx, event.Reference, event)
	case domain.PaymentEventFailure:
		applied, err = s.payments.ApplyFailure(ctx, event.Reference, event)
	}
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("webhook for unknown reference", zap.String("reference", event.Reference))
		return Ack{OK: false, Reason: "not_found"}, nil
	}
	if err != nil {
		return Ack{}, err
	}

	if _, err := s.cache.SetIdempotency(ctx, doneKey); err != nil {
		s.logger.Warn("set idempotency key failed", zap.String("reference", event.Reference), zap.Error(err))
	}

	if !applied {
		return Ack{OK: true, Message: "Already processed"}, nil
	}

	s.emit(ctx, event)
	return Ack{OK: true, Message: "processed"}, nil
}

type paymentOutcomePayload struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

func (s *ReconcileService) emit(ctx context.Context, event domain.PaymentEvent) {
	eventType := port.EventPaymentSucceeded
	if event.Kind == domain.PaymentEventFailure {
		eventType = port.EventPaymentFailed
	}
	err := s.publisher.Publish(ctx, eventType, event.Reference, paymentOutcomePayload{
		Reference: event.Reference,
		Amount:    event.Amount,
		Channel:   event.Channel,
	})
	if err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", eventType),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
	}
}

func classify(event, status string) domain.PaymentEventKind {
	switch {
	case event == "charge.success" || status == "success":
		return domain.PaymentEventSuccess
	case event == "charge.failed" || status == "failed" || status == "abandoned":
		return domain.PaymentEventFailure
	default:
		return domain.PaymentEventUnknown
	}
}
