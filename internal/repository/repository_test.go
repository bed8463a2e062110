package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	seedCatalog(t, repo)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func seedCatalog(t *testing.T, repo *Repository) {
	ctx := context.Background()
	statements := []string{
		`INSERT INTO users (id, name, email, phone) VALUES (1, 'Seller', 'seller@example.com', ''), (7, 'Lan', 'lan@example.com', '0900')`,
		`INSERT INTO addresses (id, user_id, address, city, country) VALUES (70, 7, '1 Le Loi', 'Hue', 'VN')`,
		`INSERT INTO shops (id, user_id, name) VALUES (5, 1, 'Tea House')`,
		`INSERT INTO products (id, name, shop_id, category_id, unit_price, discount, discount_type, current_stock, tax, tax_type, shipping_cost, variant_product, published)
		 VALUES (1, 'Green Tea', 5, 2, 20000, 0, 'amount', 1, 10, 'percent', 0, FALSE, TRUE),
		        (2, 'Black Tea', 5, 2, 25000, 10, 'percent', 5, 0, 'amount', 0, FALSE, TRUE),
		        (3, 'T-Shirt', 5, 3, 100000, 0, 'amount', 0, 0, 'amount', 5000, TRUE, TRUE),
		        (4, 'Hidden Tea', 5, 2, 1000, 0, 'amount', 9, 0, 'amount', 0, FALSE, FALSE)`,
		`INSERT INTO product_stocks (id, product_id, variant, sku, price, qty, attributes)
		 VALUES (31, 3, 'M-Red', 'TS-M-R', 110000, 2, '{"size":"M","color":"red"}')`,
	}
	for _, stmt := range statements {
		_, err := repo.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
}

func TestGetProduct(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p, err := repo.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Black Tea", p.Name)
	assert.Equal(t, domain.AmountPercent, p.DiscountType)
	assert.True(t, decimal.NewFromInt(10).Equal(p.Discount))
	assert.Equal(t, 5, p.CurrentStock)

	_, err = repo.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetVariant(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	v, err := repo.GetVariant(ctx, 3, 31)
	require.NoError(t, err)
	assert.Equal(t, "M", v.Attributes["size"])
	assert.Equal(t, 2, v.Stock)

	_, err = repo.GetVariant(ctx, 1, 31)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchProducts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	page, err := repo.SearchProducts(ctx, domain.ProductQuery{Search: "TEA", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, int64(2), page.Products[0].ID)
	assert.Equal(t, 2, page.Total)

	page, err = repo.SearchProducts(ctx, domain.ProductQuery{CategoryID: 3, ShopID: 5, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(3), page.Products[0].ID)

	page, err = repo.SearchProducts(ctx, domain.ProductQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, 3, page.Total)
}

func TestGetCustomerAddresses(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	c, err := repo.GetCustomer(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Lan", c.Name)

	addresses, err := repo.GetCustomerAddresses(ctx, 7)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "Hue", addresses[0].City)

	_, err = repo.GetCustomer(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func insertOrder(ctx context.Context, tx store.OrderTx, code string) (*domain.Order, error) {
	combined := &domain.CombinedOrder{GrandTotal: decimal.NewFromInt(22000)}
	if err := tx.InsertCombinedOrder(ctx, combined); err != nil {
		return nil, err
	}
	order := &domain.Order{
		CombinedOrderID: combined.ID,
		SellerID:        1,
		Code:            code,
		ShippingAddress: domain.Snapshot{"address": "1 Le Loi", "city": "Hue"},
		ShippingType:    domain.ShippingHomeDelivery,
		PaymentType:     "cash",
		PaymentStatus:   domain.PaymentStatusPaid,
		DeliveryStatus:  domain.DeliveryStatusPending,
		OrderFrom:       domain.OrderFromPOS,
		GrandTotal:      combined.GrandTotal,
	}
	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func TestWithTx_CommitOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var orderID int64
	err := repo.WithTx(ctx, func(tx store.OrderTx) error {
		order, err := insertOrder(ctx, tx, "20261016-000001-AAAA")
		if err != nil {
			return err
		}
		orderID = order.ID

		detail := &domain.OrderDetail{
			OrderID:        order.ID,
			SellerID:       1,
			ProductID:      3,
			VariationID:    31,
			Variation:      domain.Snapshot{"size": "M"},
			Price:          decimal.NewFromInt(110000),
			ShippingCost:   decimal.NewFromInt(5000),
			Quantity:       2,
			PaymentStatus:  domain.PaymentStatusPaid,
			DeliveryStatus: domain.DeliveryStatusPending,
			ShippingType:   domain.ShippingHomeDelivery,
			ReferralCode:   "REF1",
		}
		if err := tx.InsertOrderDetail(ctx, detail); err != nil {
			return err
		}
		if err := tx.DecrementVariantStock(ctx, 31, 2); err != nil {
			return err
		}
		if err := tx.IncrementSales(ctx, 3, 2); err != nil {
			return err
		}
		return tx.EnqueueEvent(ctx, &domain.OutboxEvent{
			AggregateID: order.Code,
			EventType:   domain.EventOrderCreated,
			Payload:     []byte(`{"order_id":1}`),
		})
	})
	require.NoError(t, err)

	order, err := repo.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "20261016-000001-AAAA", order.Code)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "Hue", order.ShippingAddress["city"])
	require.Len(t, order.Details, 1)
	assert.Equal(t, "M", order.Details[0].Variation["size"])
	assert.Equal(t, "REF1", order.Details[0].ReferralCode)

	v, err := repo.GetVariant(ctx, 3, 31)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stock)

	p, err := repo.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumOfSale)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].EventType)

	require.NoError(t, repo.MarkEventsAsProcessed(ctx, []int64{events[0].ID}))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWithTx_RollbackOnStockConflict(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx store.OrderTx) error {
		if _, err := insertOrder(ctx, tx, "20261016-000002-BBBB"); err != nil {
			return err
		}
		if err := tx.DecrementProductStock(ctx, 2, 3); err != nil {
			return err
		}
		return tx.DecrementProductStock(ctx, 1, 2)
	})
	assert.ErrorIs(t, err, domain.ErrStockConflict)

	p, err := repo.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentStock)

	var count int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Zero(t, count)
}

func TestWithTx_DuplicateOrderCode(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx store.OrderTx) error {
		_, err := insertOrder(ctx, tx, "DUP")
		return err
	})
	require.NoError(t, err)

	err = repo.WithTx(ctx, func(tx store.OrderTx) error {
		_, err := insertOrder(ctx, tx, "DUP")
		return err
	})
	assert.ErrorIs(t, err, store.ErrDuplicateOrderCode)
}

func TestWithTx_ConcurrentLastUnit(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.WithTx(ctx, func(tx store.OrderTx) error {
				if _, err := tx.GetProduct(ctx, 1); err != nil {
					return err
				}
				return tx.DecrementProductStock(ctx, 1, 1)
			})
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrStockConflict):
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)

	p, err := repo.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentStock)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.GetProduct(ctx, 1)
	assert.Error(t, err)
}

func TestWithTx_IncrementSales(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx store.OrderTx) error {
		return tx.IncrementSales(ctx, 2, 3)
	})
	require.NoError(t, err)

	p, err := repo.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.NumOfSale)

	err = repo.WithTx(ctx, func(tx store.OrderTx) error {
		return tx.IncrementSales(ctx, 999, 1)
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
