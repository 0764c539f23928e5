package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

// mockStore implements the product, order, payment and user repositories
// over in-memory maps with the same atomicity contract as the MySQL
// adapter: an order either reserves all of its stock or none of it.
type mockStore struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	orders     map[string]*domain.Order
	payments   []*domain.Payment
	emails     map[string]string
	failInsert bool
}

func newMockStore() *mockStore {
	return &mockStore{
		products: make(map[string]*domain.Product),
		orders:   make(map[string]*domain.Order),
		emails:   make(map[string]string),
	}
}

func (m *mockStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.products[p.ID] = &cp
}

func (m *mockStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

// --- ProductRepository ---

func (m *mockStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockStore) DeleteProduct(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return false, domain.ErrNotFound
	}
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				p := m.products[id]
				p.IsActive = false
				return true, nil
			}
		}
	}
	delete(m.products, id)
	return false, nil
}

// --- OrderRepository ---

func (m *mockStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type applied struct {
		p   *domain.Product
		qty int
	}
	var done []applied
	rollback := func() {
		for _, a := range done {
			a.p.Stock += a.qty
			a.p.IsSold = false
		}
	}

	for _, it := range order.Items {
		p, ok := m.products[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			rollback()
			available := 0
			if ok {
				available = p.Stock
			}
			return &domain.StockShortageError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: available,
			}
		}
		p.Stock -= it.Quantity
		if p.Stock == 0 {
			p.IsSold = true
		}
		done = append(done, applied{p: p, qty: it.Quantity})
	}

	if m.failInsert {
		rollback()
		return errors.New("forced insert failure")
	}

	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockStore) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		for _, it := range o.Items {
			if p, ok := m.products[it.ProductID]; ok && p.SellerID == sellerID {
				out = append(out, *o)
				break
			}
		}
	}
	return out, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return domain.ErrInvalidTransition
	}
	o.Status = to
	return nil
}

func (m *mockStore) CancelOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status.Terminal() {
		return domain.ErrInvalidState
	}
	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.Stock += it.Quantity
			p.IsSold = false
		}
	}
	o.Status = domain.OrderStatusCancelled
	return nil
}

func (m *mockStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status != domain.OrderStatusCancelled {
		for _, it := range o.Items {
			if p, ok := m.products[it.ProductID]; ok {
				p.Stock += it.Quantity
				p.IsSold = false
			}
		}
	}
	delete(m.orders, id)
	return nil
}

// --- PaymentRepository ---

func (m *mockStore) CreatePayment(ctx context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments = append(m.payments, &cp)
	return nil
}

func (m *mockStore) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProviderReference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) LatestForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.payments) - 1; i >= 0; i-- {
		if m.payments[i].OrderID == orderID {
			cp := *m.payments[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) AttachReference(ctx context.Context, paymentID, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == paymentID {
			p.ProviderReference = reference
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) DeletePayment(ctx context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.payments {
		if p.ID == paymentID {
			m.payments = append(m.payments[:i], m.payments[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockStore) ApplySuccess(ctx context.Context, reference string, ev domain.PaymentEvent) (bool, error) {
	return m.applyTerminal(reference, domain.PaymentStatusSuccess, ev)
}

func (m *mockStore) ApplyFailure(ctx context.Context, reference string, ev domain.PaymentEvent) (bool, error) {
	return m.applyTerminal(reference, domain.PaymentStatusFailed, ev)
}

func (m *mockStore) applyTerminal(reference string, to domain.PaymentStatus, ev domain.PaymentEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var payment *domain.Payment
	for _, p := range m.payments {
		if p.ProviderReference == reference {
			payment = p
			break
		}
	}
	if payment == nil {
		return false, domain.ErrNotFound
	}
	if payment.Status.Terminal() {
		return false, nil
	}
	if to == domain.PaymentStatusSuccess {
		if o, ok := m.orders[payment.OrderID]; ok && o.PaymentStatus == domain.PaymentStatePaid {
			return false, nil
		}
	}

	payment.Status = to
	payment.History = append(payment.History, ev)

	if o, ok := m.orders[payment.OrderID]; ok {
		switch to {
		case domain.PaymentStatusSuccess:
			o.PaymentStatus = domain.PaymentStatePaid
			if o.Status == domain.OrderStatusPending {
				o.Status = domain.OrderStatusConfirmed
			}
		case domain.PaymentStatusFailed:
			o.PaymentStatus = domain.PaymentStateFailed
		}
	}
	return true, nil
}

// --- CartRepository ---

type mockCartRepo struct {
	mu    sync.Mutex
	lines map[string]*domain.CartLine // userID + "/" + productID
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{lines: make(map[string]*domain.CartLine)}
}

func cartKey(userID, productID string) string { return userID + "/" + productID }

func (m *mockCartRepo) AddLine(ctx context.Context, userID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cartKey(userID, productID)
	if l, ok := m.lines[key]; ok {
		l.Quantity += qty
		return nil
	}
	m.lines[key] = &domain.CartLine{UserID: userID, ProductID: productID, Quantity: qty}
	return nil
}

func (m *mockCartRepo) SetLineQuantity(ctx context.Context, userID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[cartKey(userID, productID)]
	if !ok {
		return domain.ErrNotFound
	}
	l.Quantity = qty
	return nil
}

func (m *mockCartRepo) RemoveLine(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, cartKey(userID, productID))
	return nil
}

func (m *mockCartRepo) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLine
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockCartRepo) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, l := range m.lines {
		if l.UserID == userID {
			delete(m.lines, k)
		}
	}
	return nil
}

// --- UserRepository ---

func (m *mockStore) GetEmail(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.emails[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return email, nil
}

// --- CacheRepository ---

type cachedStatus struct {
	buyerID string
	status  string
}

type mockCache struct {
	mu       sync.Mutex
	idemKeys map[string]bool
	statuses map[string]cachedStatus
}

func newMockCache() *mockCache {
	return &mockCache{
		idemKeys: make(map[string]bool),
		statuses: make(map[string]cachedStatus),
	}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idemKeys[key] {
		return false, nil
	}
	m.idemKeys[key] = true
	return true, nil
}

func (m *mockCache) IdempotencySeen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idemKeys[key], nil
}

func (m *mockCache) CacheOrderStatus(ctx context.Context, orderID, buyerID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[orderID] = cachedStatus{buyerID: buyerID, status: status}
	return nil
}

func (m *mockCache) CachedOrderStatus(ctx context.Context, orderID string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.statuses[orderID]
	return c.buyerID, c.status, nil
}

func (m *mockCache) InvalidateOrderStatus(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, orderID)
	return nil
}

// --- EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []string
}

func (m *mockPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	return nil
}

// --- PaymentGateway ---

type fakeGateway struct {
	mu sync.Mutex

	initResp *port.InitializeResponse
	initErr  error
	initSeen []port.InitializeRequest

	verifyResp  *port.VerifyResponse
	verifyErr   error
	verifyCalls int

	signatureOK bool
}

func (g *fakeGateway) Initialize(ctx context.Context, req port.InitializeRequest) (*port.InitializeResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initSeen = append(g.initSeen, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	if g.initResp != nil {
		return g.initResp, nil
	}
	return &port.InitializeResponse{
		AuthorizationURL: "https://provider.example/authorize/" + req.Reference,
		AccessCode:       "access-" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*port.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	if g.verifyResp != nil {
		return g.verifyResp, nil
	}
	return nil, fmt.Errorf("no verify response configured for %s", reference)
}

func (g *fakeGateway) ValidateSignature(rawBody []byte, signature string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signatureOK
}
