package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/fjod/go_pickup/internal/domain"
)

// qrImageSize is the edge length in pixels of the rendered pickup code.
const qrImageSize = 256

type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, lines []domain.CartLine) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, requesterID string) (*domain.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, requesterID string) (*domain.Order, error)
	VerifyToken(ctx context.Context, token string) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lines := make([]domain.CartLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = item.toCartLine()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.CreateOrder(ctx, customerID, lines)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderDTO(order, true))
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, customerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := OrdersResponse{Orders: make([]OrderDTO, len(orders))}
	for i, o := range orders {
		resp.Orders[i] = toOrderDTO(o, true)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order, true))
}

func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.CancelOrder(ctx, orderID, customerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order, false))
}

// QRCode renders the pickup token as a PNG. Only pending orders have a usable code.
func (h *OrdersHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	order, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	if order.Status != domain.OrderStatusPending {
		handleServiceError(w, r, domain.NewAlreadyFinalizedError(order))
		return
	}

	png, err := qrcode.Encode(order.QRToken, qrcode.Medium, qrImageSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to render pickup code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Verify is the staff-facing redemption endpoint.
func (h *OrdersHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.VerifyToken(ctx, req.Token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(order, false))
}

func (h *OrdersHandler) ownedOrder(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return nil, false
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, orderID, customerID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return order, true
}

func requireCustomer(w http.ResponseWriter, r *http.Request) (string, bool) {
	customerID := customerIDFromContext(r.Context())
	if customerID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing customer identity")
		return "", false
	}
	return customerID, true
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_argument", "invalid order_id")
		return uuid.Nil, false
	}
	return orderID, true
}
