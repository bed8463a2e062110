package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog *service.CatalogService
	log     *slog.Logger
	timeout time.Duration
}

func NewProductHandler(catalog *service.CatalogService, log *slog.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{catalog: catalog, log: log, timeout: timeout}
}

// SearchProducts handles GET /api/v1/pos/products?search=&category_id=&shop_id=&page=
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.ProductQuery{Search: q.Get("search"), Page: 1}

	var err error
	if query.CategoryID, err = optionalInt(q.Get("category_id")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid category_id")
		return
	}
	if query.ShopID, err = optionalInt(q.Get("shop_id")); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid shop_id")
		return
	}
	if p := q.Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid page")
			return
		}
		query.Page = page
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.catalog.SearchProducts(ctx, query)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "", page)
}

// Variations handles GET /api/v1/pos/products/{product_id}/variations
func (h *ProductHandler) Variations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid product_id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	v, err := h.catalog.Variations(ctx, id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "", v)
}

func optionalInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
