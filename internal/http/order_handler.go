package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrderHandler struct {
	checkout *service.CheckoutService
	log      *slog.Logger
	timeout  time.Duration
}

func NewOrderHandler(checkout *service.CheckoutService, log *slog.Logger, timeout time.Duration) *OrderHandler {
	return &OrderHandler{checkout: checkout, log: log, timeout: timeout}
}

type CreateOrderRequestDTO struct {
	PaymentType       string `json:"payment_type"`
	PaymentStatus     string `json:"payment_status"`
	ShippingAddressID *int64 `json:"shipping_address_id"`
	ShippingType      string `json:"shipping_type"`
	AdditionalInfo    string `json:"additional_info"`
	ShopID            *int64 `json:"shop_id"`
}

// CreateOrder handles POST /api/v1/pos/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp, err := h.checkout.CreateOrder(ctx, &domain.CreateOrderRequest{
		SessionID:         getSessionID(ctx),
		PaymentType:       req.PaymentType,
		PaymentStatus:     domain.PaymentStatus(req.PaymentStatus),
		ShippingAddressID: req.ShippingAddressID,
		ShippingType:      domain.ShippingType(req.ShippingType),
		AdditionalInfo:    req.AdditionalInfo,
		ShopID:            req.ShopID,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusCreated, "Order Completed Successfully.", resp)
}

// GetOrder handles GET /api/v1/pos/orders/{order_id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid order_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.checkout.GetOrder(ctx, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "", order)
}
