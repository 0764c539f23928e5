package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BenedictTTM/e-back-sub000/internal/core/domain"
	"github.com/BenedictTTM/e-back-sub000/internal/core/service"
)

// SignatureHeader carries the provider's hex HMAC-SHA512 of the raw
// webhook body.
const SignatureHeader = "x-provider-signature"

const maxWebhookBody = 1 << 20

type HTTPHandler struct {
	cart      *service.CartService
	orders    *service.OrderService
	payments  *service.PaymentService
	reconcile *service.ReconcileService
	catalog   *service.CatalogService
	logger    *zap.Logger
}

func NewHTTPHandler(
	cart *service.CartService,
	orders *service.OrderService,
	payments *service.PaymentService,
	reconcile *service.ReconcileService,
	catalog *service.CatalogService,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		cart:      cart,
		orders:    orders,
		payments:  payments,
		reconcile: reconcile,
		catalog:   catalog,
		logger:    logger,
	}
}

func (h *HTTPHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{productID}", h.updateCartItem)
			r.Delete("/items/{productID}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listBuyerOrders)
			r.Get("/sold", h.listSellerOrders)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/status", h.getOrderStatus)
			r.Post("/{id}/cancel", h.cancelOrder)
			r.Post("/{id}/pay", h.initiatePayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Patch("/orders/{id}/status", h.adminUpdateOrderStatus)
			r.Delete("/orders/{id}", h.adminDeleteOrder)
			r.Delete("/products/{id}", h.deleteProduct)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/webhook", h.paymentWebhook)
			r.Get("/verify/{reference}", h.verifyPayment)
		})
	})

	return r
}

// Identity arrives pre-resolved from the upstream auth layer.
func callerID(r *http.Request) string { return r.Header.Get("X-User-Id") }

func isAdmin(r *http.Request) bool { return r.Header.Get("X-User-Role") == "admin" }

func (h *HTTPHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin only"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps the error taxonomy onto HTTP statuses. Stock shortfall
// responses name the offending product and the requested vs. available
// quantities.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var shortage *domain.StockShortageError
	if errors.As(err, &shortage) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     shortage.Error(),
			ProductID: shortage.ProductID,
			Requested: shortage.Requested,
			Available: shortage.Available,
		})
		return
	}

	var gw *domain.GatewayError
	if errors.As(err, &gw) {
		status := http.StatusBadGateway
		msg := "payment provider unavailable"
		if !gw.Retryable {
			msg = "payment provider rejected the request"
		}
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrMalformedEvent), errors.Is(err, service.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *HTTPHandler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- cart ---

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.cart.AddItem(r.Context(), callerID(r), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	err := h.cart.UpdateItem(r.Context(), callerID(r), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveItem(r.Context(), callerID(r), chi.URLParam(r, "productID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) getCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.GetCart(r.Context(), callerID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *HTTPHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.ClearCart(r.Context(), callerID(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- orders ---

type createOrderRequest struct {
	Currency string `json:"currency"`
	Items    []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (h *HTTPHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Currency == "" {
		req.Currency = "GHS"
	}

	items := make([]service.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.orders.CreateOrder(r.Context(), callerID(r), req.Currency, items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), callerID(r), isAdmin(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.orders.GetOrderStatus(r.Context(), callerID(r), isAdmin(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *HTTPHandler) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListBuyerOrders(r.Context(), callerID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListSellerOrders(r.Context(), callerID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	err := h.orders.CancelOrder(r.Context(), callerID(r), isAdmin(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) adminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HTTPHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	archived, err := h.catalog.DeleteProduct(r.Context(), callerID(r), isAdmin(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "archived": archived})
}

// --- payments ---

type initiatePaymentResponse struct {
	PaymentID        string `json:"payment_id"`
	Reference        string `json:"reference,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Status           string `json:"status"`
	Reused           bool   `json:"reused"`
}

func (h *HTTPHandler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.InitiatePayment(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiatePaymentResponse{
		PaymentID:        result.Payment.ID,
		Reference:        result.Payment.ProviderReference,
		AuthorizationURL: result.AuthorizationURL,
		Status:           string(result.Payment.Status),
		Reused:           result.Reused,
	})
}

// paymentWebhook consumes provider pushes. The body is kept raw for
// signature verification; transient storage failures return 5xx so the
// provider retries, everything else is acknowledged.
func (h *HTTPHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable body"})
		return
	}

	ack, err := h.reconcile.HandleWebhook(r.Context(), rawBody, r.Header.Get(SignatureHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (h *HTTPHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ack, err := h.reconcile.VerifyByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}
