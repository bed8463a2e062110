package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/logger"
	"github.com/fjod/go_cart/pos-service/internal/pricing"
	"github.com/fjod/go_cart/pos-service/internal/session"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// FailingOrders wraps a real order store and makes one OrderTx method fail.
type FailingOrders struct {
	*store.MemoryStore
	FailOn    string
	FailAfter int // successful calls before failing
}

func (f *FailingOrders) WithTx(ctx context.Context, fn func(tx store.OrderTx) error) error {
	return f.MemoryStore.WithTx(ctx, func(tx store.OrderTx) error {
		return fn(&failingTx{OrderTx: tx, parent: f})
	})
}

type failingTx struct {
	store.OrderTx
	parent *FailingOrders
	calls  int
}

func (t *failingTx) check(method string) error {
	if t.parent.FailOn != method {
		return nil
	}
	t.calls++
	if t.calls > t.parent.FailAfter {
		return errInjected
	}
	return nil
}

func (t *failingTx) InsertOrderDetail(ctx context.Context, d *domain.OrderDetail) error {
	if err := t.check("InsertOrderDetail"); err != nil {
		return err
	}
	return t.OrderTx.InsertOrderDetail(ctx, d)
}

func (t *failingTx) IncrementSales(ctx context.Context, productID int64, quantity int) error {
	if err := t.check("IncrementSales"); err != nil {
		return err
	}
	return t.OrderTx.IncrementSales(ctx, productID, quantity)
}

func (t *failingTx) EnqueueEvent(ctx context.Context, e *domain.OutboxEvent) error {
	if err := t.check("EnqueueEvent"); err != nil {
		return err
	}
	return t.OrderTx.EnqueueEvent(ctx, e)
}

// FlakySessions fails Set once FailSet is true.
type FlakySessions struct {
	*session.MemoryStore
	FailSet bool
}

func (f *FlakySessions) Set(ctx context.Context, s *domain.Session) error {
	if f.FailSet {
		return errors.New("redis down")
	}
	return f.MemoryStore.Set(ctx, s)
}

type fixture struct {
	store     *store.MemoryStore
	sessions  *FlakySessions
	manager   *SessionManager
	engine    *pricing.Engine
	cart      *CartService
	customers *CustomerService
	catalog   *CatalogService
	checkout  *CheckoutService
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Discard()

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	percent10 := domain.TaxRule{Type: domain.AmountPercent, Value: dec(10)}
	st.SetProduct(domain.Product{ID: 1, Name: "Green Tea", ShopID: 5, CategoryID: 2, UnitPrice: dec(100000), CurrentStock: 5, Tax: percent10, Published: true})
	st.SetProduct(domain.Product{ID: 2, Name: "Cup", ShopID: 5, CategoryID: 2, UnitPrice: dec(50000), CurrentStock: 1, Tax: domain.TaxRule{Type: domain.AmountFlat, Value: dec(1000)}, ShippingCost: dec(15000), Published: true})
	st.SetProduct(domain.Product{ID: 3, Name: "T-Shirt", ShopID: 6, CategoryID: 3, UnitPrice: dec(100000), Discount: dec(10), DiscountType: domain.AmountPercent, VariantProduct: true, Published: true})
	st.SetProduct(domain.Product{ID: 4, Name: "Draft", ShopID: 5, UnitPrice: dec(1000), CurrentStock: 9})
	st.SetVariant(domain.Variant{ID: 31, ProductID: 3, Name: "M-Red", Price: dec(120000), Stock: 2, Attributes: domain.Snapshot{"size": "M", "color": "red"}})
	st.SetVariant(domain.Variant{ID: 32, ProductID: 3, Name: "L-Blue", Price: dec(130000), Stock: 4, Attributes: domain.Snapshot{"size": "L", "color": "blue"}})
	st.SetVariant(domain.Variant{ID: 33, ProductID: 3, Name: "M-Blue", Price: dec(120000), Stock: 0, Attributes: domain.Snapshot{"size": "M", "color": "blue"}})
	st.SetShop(5, 500)
	st.SetCustomer(domain.Customer{ID: 7, Name: "Lan", Email: "lan@example.com", Phone: "0900"})
	st.SetAddress(domain.Address{ID: 70, UserID: 7, Address: "1 Le Loi", City: "Hue", Country: "VN"})
	st.SetCustomer(domain.Customer{ID: 8, Name: "Minh"})
	st.SetAddress(domain.Address{ID: 80, UserID: 8, Address: "3 Hai Ba Trung", City: "Hanoi"})

	sessions := &FlakySessions{MemoryStore: session.NewMemoryStore()}
	manager := NewSessionManager(sessions, log)
	engine := pricing.NewEngine(domain.NewCurrency("VND"))

	return &fixture{
		store:     st,
		sessions:  sessions,
		manager:   manager,
		engine:    engine,
		cart:      NewCartService(st, manager, engine, log),
		customers: NewCustomerService(st, manager, log),
		catalog:   NewCatalogService(st, 2),
		checkout:  NewCheckoutService(st, manager, engine, ShopOwnerPolicy{DefaultSellerID: 1}, log),
	}
}

// ContextSessions fails reads whose context is already done, like a network
// backed store would.
type ContextSessions struct {
	*session.MemoryStore
}

func (c *ContextSessions) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.MemoryStore.Get(ctx, sessionID)
}
