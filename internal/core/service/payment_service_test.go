package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

func paymentFixture(t *testing.T, store *mockStore) *domain.Order {
	t.Helper()
	store.addProduct(domain.Product{
		ID: "prod-1", SellerID: "seller-1", Title: "Desk Lamp",
		Stock: 5, IsActive: true, OriginalPrice: 150,
	})
	store.emails["buyer-1"] = "buyer@example.com"

	orderSvc, _, _ := newOrderService(store)
	order, err := orderSvc.CreateOrder(context.Background(), "buyer-1", "GHS", []ItemInput{
		{ProductID: "prod-1", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("fixture order failed: %v", err)
	}
	return order
}

func TestInitiatePayment_HappyPath(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	gw := &fakeGateway{}
	svc := NewPaymentService(store, store, store, gw, zap.NewNop(), "https://shop.example/callback")

	result, err := svc.InitiatePayment(context.Background(), "buyer-1", order.ID)
	if err != nil {
		t.Fatalf("InitiatePayment failed: %v", err)
	}
	if result.Reused {
		t.Error("fresh payment should not be marked reused")
	}
	if result.AuthorizationURL == "" {
		t.Error("expected an authorization URL")
	}

	p := result.Payment
	if p.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING payment, got %s", p.Status)
	}
	if p.Amount != order.TotalAmount {
		t.Errorf("expected amount %d, got %d", order.TotalAmount, p.Amount)
	}
	if p.ProviderReference == "" || !strings.HasPrefix(p.ProviderReference, "PAY-"+order.ID+"-") {
		t.Errorf("unexpected provider reference %q", p.ProviderReference)
	}

	if len(gw.initSeen) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gw.initSeen))
	}
	req := gw.initSeen[0]
	if req.Email != "buyer@example.com" {
		t.Errorf("expected buyer email in gateway request, got %q", req.Email)
	}
	if req.AmountMinor != order.TotalAmount {
		t.Errorf("expected gateway amount %d, got %d", order.TotalAmount, req.AmountMinor)
	}
	if req.CallbackURL != "https://shop.example/callback" {
		t.Errorf("unexpected callback URL %q", req.CallbackURL)
	}

	stored, _ := store.GetByReference(context.Background(), p.ProviderReference)
	if stored == nil {
		t.Fatal("payment not findable by reference")
	}
}

func TestInitiatePayment_NotYourOrder(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	svc := NewPaymentService(store, store, store, &fakeGateway{}, zap.NewNop(), "")

	_, err := svc.InitiatePayment(context.Background(), "intruder", order.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestInitiatePayment_OrderNotPayable(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	svc := NewPaymentService(store, store, store, &fakeGateway{}, zap.NewNop(), "")
	ctx := context.Background()

	if err := store.CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestInitiatePayment_ReturnsTerminalPayment(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	svc := NewPaymentService(store, store, store, &fakeGateway{}, zap.NewNop(), "")
	ctx := context.Background()

	first, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	if err != nil {
		t.Fatalf("first initiation failed: %v", err)
	}
	// Provider reports failure; the payment is now terminal but the order
	// is still payable.
	if _, err := store.ApplyFailure(ctx, first.Payment.ProviderReference, domain.PaymentEvent{
		Kind: domain.PaymentEventFailure, Reference: first.Payment.ProviderReference,
	}); err != nil {
		t.Fatalf("apply failure: %v", err)
	}

	second, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	if err != nil {
		t.Fatalf("second initiation failed: %v", err)
	}
	if !second.Reused {
		t.Error("expected terminal payment to be returned as reused")
	}
	if second.Payment.ID != first.Payment.ID {
		t.Errorf("expected the same payment back, got %s vs %s", second.Payment.ID, first.Payment.ID)
	}
	if second.AuthorizationURL != "" {
		t.Error("a reused terminal payment must not carry an authorization URL")
	}
}

func TestInitiatePayment_ReplacesStalePending(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	gw := &fakeGateway{}
	svc := NewPaymentService(store, store, store, gw, zap.NewNop(), "")
	ctx := context.Background()

	first, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	if err != nil {
		t.Fatalf("first initiation failed: %v", err)
	}
	second, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	if err != nil {
		t.Fatalf("second initiation failed: %v", err)
	}

	if second.Payment.ID == first.Payment.ID {
		t.Error("expected a fresh payment replacing the stale pending one")
	}
	if second.Payment.ProviderReference == first.Payment.ProviderReference {
		t.Error("expected a fresh provider reference")
	}
	if old, _ := store.GetByReference(ctx, first.Payment.ProviderReference); old != nil {
		t.Error("stale pending payment should be gone")
	}
	if latest, _ := store.LatestForOrder(ctx, order.ID); latest == nil || latest.ID != second.Payment.ID {
		t.Error("latest payment for order should be the replacement")
	}
}

func TestInitiatePayment_GatewayFailureKeepsPaymentPending(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	gw := &fakeGateway{
		initErr: &domain.GatewayError{Op: "initialize", Retryable: true, Err: errors.New("connect timeout")},
	}
	svc := NewPaymentService(store, store, store, gw, zap.NewNop(), "")
	ctx := context.Background()

	_, err := svc.InitiatePayment(ctx, "buyer-1", order.ID)
	var gerr *domain.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}

	// The row exists, stays PENDING and has no reference attached.
	p, err := store.LatestForOrder(ctx, order.ID)
	if err != nil || p == nil {
		t.Fatalf("expected payment row, got %v / %v", p, err)
	}
	if p.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING, got %s", p.Status)
	}
	if p.ProviderReference != "" {
		t.Errorf("expected no provider reference, got %q", p.ProviderReference)
	}
}

func TestInitiatePayment_UnknownBuyerEmail(t *testing.T) {
	store := newMockStore()
	order := paymentFixture(t, store)
	delete(store.emails, "buyer-1")
	gw := &fakeGateway{}
	svc := NewPaymentService(store, store, store, gw, zap.NewNop(), "")

	_, err := svc.InitiatePayment(context.Background(), "buyer-1", order.ID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(gw.initSeen) != 0 {
		t.Error("gateway must not be called without a buyer email")
	}
}

var _ port.PaymentGateway = (*fakeGateway)(nil)
