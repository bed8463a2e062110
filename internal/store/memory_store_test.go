package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *MemoryStore {
	store := NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	store.SetProduct(domain.Product{ID: 1, Name: "Green Tea", ShopID: 5, CategoryID: 2, UnitPrice: decimal.NewFromInt(20000), CurrentStock: 10, Published: true})
	store.SetProduct(domain.Product{ID: 2, Name: "Black Tea", ShopID: 5, CategoryID: 2, UnitPrice: decimal.NewFromInt(25000), CurrentStock: 3, Published: true})
	store.SetProduct(domain.Product{ID: 3, Name: "T-Shirt", ShopID: 6, CategoryID: 3, UnitPrice: decimal.NewFromInt(100000), VariantProduct: true, Published: true})
	store.SetProduct(domain.Product{ID: 4, Name: "Hidden Tea", ShopID: 5, CategoryID: 2, Published: false})
	store.SetVariant(domain.Variant{ID: 31, ProductID: 3, Name: "M-Red", Price: decimal.NewFromInt(110000), Stock: 2, Attributes: domain.Snapshot{"size": "M", "color": "red"}})
	store.SetVariant(domain.Variant{ID: 32, ProductID: 3, Name: "L-Blue", Price: decimal.NewFromInt(120000), Stock: 1, Attributes: domain.Snapshot{"size": "L", "color": "blue"}})
	store.SetShop(5, 500)
	store.SetCustomer(domain.Customer{ID: 7, Name: "Lan", Email: "lan@example.com"})
	store.SetAddress(domain.Address{ID: 70, UserID: 7, Address: "1 Le Loi", City: "Hue"})
	store.SetAddress(domain.Address{ID: 71, UserID: 7, Address: "2 Tran Phu", City: "Hue"})
	store.SetAddress(domain.Address{ID: 80, UserID: 8, Address: "3 Hai Ba Trung", City: "Hanoi"})
	return store
}

func TestMemoryStore_GetProduct_NotFound(t *testing.T) {
	store := setupStore(t)

	p, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Green Tea", p.Name)

	_, err = store.GetProduct(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_GetVariant_WrongProduct(t *testing.T) {
	store := setupStore(t)

	v, err := store.GetVariant(context.Background(), 3, 31)
	require.NoError(t, err)
	assert.Equal(t, "M", v.Attributes["size"])

	_, err = store.GetVariant(context.Background(), 1, 31)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_SearchProducts(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	page, err := store.SearchProducts(ctx, domain.ProductQuery{Search: "tea", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	// newest first, unpublished excluded
	assert.Equal(t, int64(2), page.Products[0].ID)
	assert.Equal(t, int64(1), page.Products[1].ID)
	assert.Equal(t, 2, page.Total)

	page, err = store.SearchProducts(ctx, domain.ProductQuery{ShopID: 6, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(3), page.Products[0].ID)

	page, err = store.SearchProducts(ctx, domain.ProductQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(1), page.Products[0].ID)
	assert.Equal(t, 3, page.Total)

	page, err = store.SearchProducts(ctx, domain.ProductQuery{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Products)
}

func TestMemoryStore_ListVariants(t *testing.T) {
	store := setupStore(t)

	variants, err := store.ListVariants(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, int64(31), variants[0].ID)

	variants, err = store.ListVariants(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, variants)
}

func TestMemoryStore_CustomerAddresses(t *testing.T) {
	store := setupStore(t)

	c, err := store.GetCustomer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Lan", c.Name)

	addresses, err := store.GetCustomerAddresses(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, addresses, 2)

	_, err = store.GetCustomer(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_WithTx_Commit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var orderID int64
	err := store.WithTx(ctx, func(tx OrderTx) error {
		combined := &domain.CombinedOrder{GrandTotal: decimal.NewFromInt(40000)}
		require.NoError(t, tx.InsertCombinedOrder(ctx, combined))

		order := &domain.Order{CombinedOrderID: combined.ID, Code: "A-1", SellerID: 500}
		require.NoError(t, tx.InsertOrder(ctx, order))
		orderID = order.ID

		require.NoError(t, tx.InsertOrderDetail(ctx, &domain.OrderDetail{OrderID: order.ID, ProductID: 1, Quantity: 2}))
		require.NoError(t, tx.DecrementProductStock(ctx, 1, 2))
		require.NoError(t, tx.IncrementSales(ctx, 1, 2))
		return tx.EnqueueEvent(ctx, &domain.OutboxEvent{AggregateID: "A-1", EventType: domain.EventOrderCreated, Payload: []byte(`{}`)})
	})
	require.NoError(t, err)

	p, _ := store.GetProduct(ctx, 1)
	assert.Equal(t, 8, p.CurrentStock)
	assert.Equal(t, 2, p.NumOfSale)

	order, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "A-1", order.Code)
	require.Len(t, order.Details, 1)
	assert.Equal(t, 2, order.Details[0].Quantity)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, store.MarkEventsAsProcessed(ctx, []int64{events[0].ID}))

	events, err = store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_WithTx_RollbackOnError(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx OrderTx) error {
		require.NoError(t, tx.InsertCombinedOrder(ctx, &domain.CombinedOrder{}))
		require.NoError(t, tx.DecrementProductStock(ctx, 1, 5))
		require.NoError(t, tx.EnqueueEvent(ctx, &domain.OutboxEvent{EventType: domain.EventOrderCreated}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := store.GetProduct(ctx, 1)
	assert.Equal(t, 10, p.CurrentStock)
	combined, orders, details := store.CountOrders()
	assert.Zero(t, combined+orders+details)
	events, _ := store.GetUnprocessedEvents(ctx, 10)
	assert.Empty(t, events)
}

func TestMemoryStore_WithTx_CancelledContext(t *testing.T) {
	store := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := store.WithTx(ctx, func(tx OrderTx) error {
		require.NoError(t, tx.DecrementProductStock(ctx, 1, 1))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	p, _ := store.GetProduct(context.Background(), 1)
	assert.Equal(t, 10, p.CurrentStock)
}

func TestMemoryStore_DecrementGuard(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx OrderTx) error {
		return tx.DecrementProductStock(ctx, 2, 4)
	})
	assert.ErrorIs(t, err, domain.ErrStockConflict)

	err = store.WithTx(ctx, func(tx OrderTx) error {
		return tx.DecrementVariantStock(ctx, 32, 2)
	})
	assert.ErrorIs(t, err, domain.ErrStockConflict)

	err = store.WithTx(ctx, func(tx OrderTx) error {
		return tx.DecrementVariantStock(ctx, 32, 1)
	})
	require.NoError(t, err)

	v, _ := store.GetVariant(ctx, 3, 32)
	assert.Equal(t, 0, v.Stock)
}

func TestMemoryStore_DecrementRejectsNonPositive(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx OrderTx) error {
		return tx.DecrementProductStock(ctx, 1, -5)
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = store.WithTx(ctx, func(tx OrderTx) error {
		return tx.DecrementVariantStock(ctx, 31, 0)
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, _ := store.GetProduct(ctx, 1)
	assert.Equal(t, 10, p.CurrentStock)
	v, _ := store.GetVariant(ctx, 3, 31)
	assert.Equal(t, 2, v.Stock)
}

func TestMemoryStore_ConcurrentDecrements_NeverOversell(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var succeeded, conflicted atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(tx OrderTx) error {
				return tx.DecrementProductStock(ctx, 2, 1)
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrStockConflict):
				conflicted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), succeeded.Load())
	assert.Equal(t, int32(17), conflicted.Load())
	p, _ := store.GetProduct(ctx, 2)
	assert.Equal(t, 0, p.CurrentStock)
}

func TestMemoryStore_ShopOwnerAndAddress(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx OrderTx) error {
		owner, err := tx.ShopOwner(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(500), owner)

		_, err = tx.ShopOwner(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		a, err := tx.GetAddress(ctx, 70)
		require.NoError(t, err)
		assert.Equal(t, int64(7), a.UserID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_LoadSeed(t *testing.T) {
	store := NewMemoryStore()
	seed := `{
		"products": [{"id": 11, "name": "Coffee", "unit_price": "30000", "current_stock": 4, "published": true, "tax": {"type": "percent", "value": "10"}}],
		"variants": [{"id": 111, "product_id": 11, "price": "32000", "stock": 2, "attributes": {"size": "L"}}],
		"customers": [{"id": 1, "name": "Minh"}],
		"addresses": [{"id": 10, "user_id": 1, "address": "Street 1"}],
		"shops": [{"id": 2, "user_id": 20}]
	}`
	require.NoError(t, store.LoadSeed(strings.NewReader(seed)))

	p, err := store.GetProduct(context.Background(), 11)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30000).Equal(p.UnitPrice))
	assert.Equal(t, domain.AmountPercent, p.Tax.Type)

	v, err := store.GetVariant(context.Background(), 11, 111)
	require.NoError(t, err)
	assert.Equal(t, "L", v.Attributes["size"])

	assert.Error(t, store.LoadSeed(strings.NewReader("{not json")))
}
