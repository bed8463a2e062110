package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/pricing"
	"github.com/fjod/go_cart/pos-service/internal/store"
)

type AddItemRequest struct {
	ProductID    int64
	VariationID  int64
	Quantity     int
	ReferralCode string
}

// CartService edits the cart held in a session. Calls for one session are
// expected to be serialized by the caller.
type CartService struct {
	catalog  store.Catalog
	sessions *SessionManager
	pricing  *pricing.Engine
	log      *slog.Logger
}

func NewCartService(catalog store.Catalog, sessions *SessionManager, engine *pricing.Engine, log *slog.Logger) *CartService {
	return &CartService{
		catalog:  catalog,
		sessions: sessions,
		pricing:  engine,
		log:      log,
	}
}

func (s *CartService) Get(ctx context.Context, sessionID string) (*domain.CartView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *CartService) AddItem(ctx context.Context, sessionID string, req AddItemRequest) (*domain.CartView, error) {
	if req.ProductID <= 0 {
		return nil, fmt.Errorf("product id must be positive: %w", domain.ErrValidation)
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation)
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	product, variant, err := s.sellable(ctx, req.ProductID, req.VariationID)
	if err != nil {
		return nil, err
	}

	key := domain.LineKey(req.ProductID, req.VariationID)
	existing, found := sess.Cart.Get(key)
	// existing.Quantity is zero when the line is new
	if stock := availableStock(product, variant); req.Quantity > stock-existing.Quantity {
		return nil, fmt.Errorf("product %d: requested %d more, in cart %d, available %d: %w",
			req.ProductID, req.Quantity, existing.Quantity, stock, domain.ErrInsufficientStock)
	}
	quantity := existing.Quantity + req.Quantity

	line := priceLine(product, variant)
	line.Quantity = quantity
	line.ReferralCode = req.ReferralCode
	if line.ReferralCode == "" {
		line.ReferralCode = existing.ReferralCode
	}
	sess.Cart.Put(line)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "cart item added",
		"session_id", sessionID, "line", key, "quantity", quantity)
	return s.view(sess), nil
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, key string) (*domain.CartView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Cart.Remove(key) {
		return nil, fmt.Errorf("cart line %s: %w", key, domain.ErrNotFound)
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// UpdateQuantity sets the quantity of an existing line after checking it
// against the stock currently in the catalog.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, key string, quantity int) (*domain.CartView, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation)
	}

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	line, ok := sess.Cart.Get(key)
	if !ok {
		return nil, fmt.Errorf("cart line %s: %w", key, domain.ErrNotFound)
	}

	product, variant, err := s.sellable(ctx, line.ProductID, line.VariationID)
	if err != nil {
		return nil, err
	}
	if stock := availableStock(product, variant); quantity > stock {
		return nil, fmt.Errorf("product %d: requested %d, available %d: %w",
			line.ProductID, quantity, stock, domain.ErrInsufficientStock)
	}

	line.Quantity = quantity
	sess.Cart.Put(line)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *CartService) Clear(ctx context.Context, sessionID string) (*domain.CartView, error) {
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Cart.Clear()
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// sellable loads a published product and, when variationID is set, its variant.
func (s *CartService) sellable(ctx context.Context, productID, variationID int64) (*domain.Product, *domain.Variant, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if !product.Published {
		return nil, nil, fmt.Errorf("product %d is not published: %w", productID, domain.ErrNotFound)
	}
	if variationID == 0 {
		if product.VariantProduct {
			return nil, nil, fmt.Errorf("product %d requires a variation: %w", productID, domain.ErrValidation)
		}
		return product, nil, nil
	}

	variant, err := s.catalog.GetVariant(ctx, productID, variationID)
	if err != nil {
		return nil, nil, err
	}
	return product, variant, nil
}

func (s *CartService) view(sess *domain.Session) *domain.CartView {
	return &domain.CartView{
		SessionID: sess.ID,
		Lines:     sess.Cart.Sorted(),
		Totals:    s.pricing.ComputeTotals(sess.Cart),
		Customer:  sess.Customer,
	}
}

func availableStock(product *domain.Product, variant *domain.Variant) int {
	if variant != nil {
		return variant.Stock
	}
	return product.CurrentStock
}

// priceLine builds a line from current catalog data. Quantity and referral
// code are left to the caller.
func priceLine(product *domain.Product, variant *domain.Variant) domain.CartLine {
	line := domain.CartLine{
		ProductID:    product.ID,
		Name:         product.Name,
		UnitPrice:    product.EffectiveUnitPrice(product.UnitPrice),
		Tax:          product.Tax,
		ShippingCost: product.ShippingCost,
	}
	if variant != nil {
		line.VariationID = variant.ID
		line.Variation = variant.Attributes.Clone()
		line.UnitPrice = product.EffectiveUnitPrice(variant.Price)
		if variant.Name != "" {
			line.Name = product.Name + " - " + variant.Name
		}
	}
	line.Key = domain.LineKey(line.ProductID, line.VariationID)
	return line
}
