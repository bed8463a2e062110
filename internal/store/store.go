package store

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/pos-service/domain"
)

// ErrDuplicateOrderCode is returned by InsertOrder when the code is already taken.
var ErrDuplicateOrderCode = errors.New("order code already exists")

// Catalog reads current product and variant state. Nothing is cached.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetVariant(ctx context.Context, productID, variationID int64) (*domain.Variant, error)
	SearchProducts(ctx context.Context, query domain.ProductQuery) (*domain.ProductPage, error)
	ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error)
}

type Customers interface {
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetCustomerAddresses(ctx context.Context, customerID int64) ([]domain.Address, error)
}

// OrderTx is the surface available inside one checkout transaction.
// Insert methods set the generated ID on the passed value.
type OrderTx interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetVariant(ctx context.Context, productID, variationID int64) (*domain.Variant, error)
	GetAddress(ctx context.Context, id int64) (*domain.Address, error)
	ShopOwner(ctx context.Context, shopID int64) (int64, error)

	InsertCombinedOrder(ctx context.Context, order *domain.CombinedOrder) error
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderDetail(ctx context.Context, detail *domain.OrderDetail) error

	// DecrementProductStock and DecrementVariantStock only succeed when the
	// remaining stock stays non-negative, otherwise they return ErrStockConflict.
	DecrementProductStock(ctx context.Context, productID int64, quantity int) error
	DecrementVariantStock(ctx context.Context, variationID int64, quantity int) error
	IncrementSales(ctx context.Context, productID int64, quantity int) error

	EnqueueEvent(ctx context.Context, event *domain.OutboxEvent) error
}

type Orders interface {
	// WithTx runs fn in a single transaction. Any error returned by fn, or a
	// cancelled context, rolls back every write made through tx.
	WithTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type Outbox interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventsAsProcessed(ctx context.Context, ids []int64) error
}

// Store is implemented by the Postgres repository and by MemoryStore.
type Store interface {
	Catalog
	Customers
	Orders
	Outbox
	Ping(ctx context.Context) error
	Close() error
}
