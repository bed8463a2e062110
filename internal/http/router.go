package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Cart           *CartHandler
	Orders         *OrderHandler
	Products       *ProductHandler
	Health         map[string]Pinger
	Log            *slog.Logger
	RequestTimeout time.Duration
	SessionTTL     time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.Health, cfg.Log))

	r.Route("/api/v1/pos", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Products.SearchProducts)
			r.Get("/{product_id}/variations", cfg.Products.Variations)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.SessionTTL))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.Cart.GetCart)
				r.Delete("/", cfg.Cart.ClearCart)
				r.Post("/items", cfg.Cart.AddItem)
				r.Put("/items/{key}", cfg.Cart.UpdateQuantity)
				r.Delete("/items/{key}", cfg.Cart.RemoveItem)
			})
			r.Put("/customer", cfg.Cart.SelectCustomer)

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", cfg.Orders.CreateOrder)
				r.Get("/{order_id}", cfg.Orders.GetOrder)
			})
		})
	})

	return r
}

func healthHandler(deps map[string]Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				log.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		respondJSON(w, status, map[string]interface{}{"status": overall, "checks": checks})
	}
}
