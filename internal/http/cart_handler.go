package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/pos-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	cart      *service.CartService
	customers *service.CustomerService
	log       *slog.Logger
	timeout   time.Duration
}

func NewCartHandler(cart *service.CartService, customers *service.CustomerService, log *slog.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:      cart,
		customers: customers,
		log:       log,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID    int64  `json:"product_id"`
	VariationID  int64  `json:"variation_id"`
	Quantity     int    `json:"quantity"`
	ReferralCode string `json:"referral_code"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SelectCustomerRequestDTO struct {
	CustomerID int64 `json:"customer_id"`
}

// GetCart handles GET /api/v1/pos/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.Get(ctx, getSessionID(ctx))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "", view)
}

// AddItem handles POST /api/v1/pos/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "quantity must be positive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.AddItem(ctx, getSessionID(ctx), service.AddItemRequest{
		ProductID:    req.ProductID,
		VariationID:  req.VariationID,
		Quantity:     req.Quantity,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "Product added to cart", view)
}

// UpdateQuantity handles PUT /api/v1/pos/cart/items/{key}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.UpdateQuantity(ctx, getSessionID(ctx), key, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "Cart updated", view)
}

// RemoveItem handles DELETE /api/v1/pos/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.RemoveItem(ctx, getSessionID(ctx), chi.URLParam(r, "key"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "Item removed", view)
}

// ClearCart handles DELETE /api/v1/pos/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.Clear(ctx, getSessionID(ctx))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "Cart cleared", view)
}

// SelectCustomer handles PUT /api/v1/pos/customer. A zero id returns
// the sale to walk-in.
func (h *CartHandler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	var req SelectCustomerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	selected, err := h.customers.SelectCustomer(ctx, getSessionID(ctx), req.CustomerID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "Customer selected", selected)
}
