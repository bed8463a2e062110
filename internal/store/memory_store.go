package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/pos-service/domain"
)

type outboxRow struct {
	event     domain.OutboxEvent
	processed bool
}

// memoryState is everything a transaction may change. WithTx works on a copy
// and swaps it in on success.
type memoryState struct {
	products  map[int64]domain.Product
	variants  map[int64]domain.Variant
	combined  map[int64]domain.CombinedOrder
	orders    map[int64]domain.Order
	details   []domain.OrderDetail
	outbox    []outboxRow
	nextID    int64
	nextEvent int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		products:  make(map[int64]domain.Product, len(s.products)),
		variants:  make(map[int64]domain.Variant, len(s.variants)),
		combined:  make(map[int64]domain.CombinedOrder, len(s.combined)),
		orders:    make(map[int64]domain.Order, len(s.orders)),
		details:   slices.Clone(s.details),
		outbox:    slices.Clone(s.outbox),
		nextID:    s.nextID,
		nextEvent: s.nextEvent,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.combined {
		c.combined[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// MemoryStore implements Store in process memory. Transactions are
// serialized, which gives the same no-oversell guarantee as the guarded
// UPDATE in Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	state     *memoryState
	shops     map[int64]int64 // shopID -> owner user id
	customers map[int64]domain.Customer
	addresses map[int64]domain.Address
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			products: make(map[int64]domain.Product),
			variants: make(map[int64]domain.Variant),
			combined: make(map[int64]domain.CombinedOrder),
			orders:   make(map[int64]domain.Order),
		},
		shops:     make(map[int64]int64),
		customers: make(map[int64]domain.Customer),
		addresses: make(map[int64]domain.Address),
	}
}

// SetProduct inserts or replaces a product
func (s *MemoryStore) SetProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

func (s *MemoryStore) SetVariant(v domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.variants[v.ID] = v
}

func (s *MemoryStore) SetShop(shopID, ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[shopID] = ownerID
}

func (s *MemoryStore) SetCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

func (s *MemoryStore) SetAddress(a domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = a
}

type memorySeed struct {
	Products  []domain.Product  `json:"products"`
	Variants  []domain.Variant  `json:"variants"`
	Customers []domain.Customer `json:"customers"`
	Addresses []domain.Address  `json:"addresses"`
	Shops     []struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"user_id"`
	} `json:"shops"`
}

// LoadSeed reads a JSON document with products, variants, customers,
// addresses and shops.
func (s *MemoryStore) LoadSeed(r io.Reader) error {
	var seed memorySeed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, p := range seed.Products {
		s.SetProduct(p)
	}
	for _, v := range seed.Variants {
		s.SetVariant(v)
	}
	for _, c := range seed.Customers {
		s.SetCustomer(c)
	}
	for _, a := range seed.Addresses {
		s.SetAddress(a)
	}
	for _, sh := range seed.Shops {
		s.SetShop(sh.ID, sh.UserID)
	}
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(s.state, id)
}

func (s *MemoryStore) GetVariant(_ context.Context, productID, variationID int64) (*domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getVariant(s.state, productID, variationID)
}

func (s *MemoryStore) SearchProducts(_ context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]domain.Product, 0)
	for _, p := range s.state.products {
		if !p.Published {
			continue
		}
		if q.CategoryID > 0 && p.CategoryID != q.CategoryID {
			continue
		}
		if q.ShopID > 0 && p.ShopID != q.ShopID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page := &domain.ProductPage{Page: max(q.Page, 1), PageSize: q.PageSize, Total: len(matched)}
	start := min(q.Offset(), len(matched))
	end := min(start+q.PageSize, len(matched))
	page.Products = matched[start:end]
	return page, nil
}

func (s *MemoryStore) ListVariants(_ context.Context, productID int64) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variants := make([]domain.Variant, 0)
	for _, v := range s.state.variants {
		if v.ProductID == productID {
			variants = append(variants, v)
		}
	}
	sort.Slice(variants, func(i, j int) bool { return variants[i].ID < variants[j].ID })
	return variants, nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) GetCustomerAddresses(_ context.Context, customerID int64) ([]domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addresses := make([]domain.Address, 0)
	for _, a := range s.addresses {
		if a.UserID == customerID {
			addresses = append(addresses, a)
		}
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i].ID < addresses[j].ID })
	return addresses, nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit aborted: %w", err)
	}
	s.state = tx.state
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	for _, d := range s.state.details {
		if d.OrderID == id {
			o.Details = append(o.Details, d)
		}
	}
	return &o, nil
}

// CountOrders returns the number of committed combined orders, orders and order details.
func (s *MemoryStore) CountOrders() (combined, orders, details int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.combined), len(s.state.orders), len(s.state.details)
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*domain.OutboxEvent, 0)
	for _, row := range s.state.outbox {
		if row.processed {
			continue
		}
		ev := row.event
		events = append(events, &ev)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventsAsProcessed(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.outbox {
		if slices.Contains(ids, s.state.outbox[i].event.ID) {
			s.state.outbox[i].processed = true
		}
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func getProduct(state *memoryState, id int64) (*domain.Product, error) {
	p, ok := state.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func getVariant(state *memoryState, productID, variationID int64) (*domain.Variant, error) {
	v, ok := state.variants[variationID]
	if !ok || v.ProductID != productID {
		return nil, fmt.Errorf("variation %d of product %d: %w", variationID, productID, domain.ErrNotFound)
	}
	v.Attributes = v.Attributes.Clone()
	return &v, nil
}

// memoryTx is only used while MemoryStore.mu is held.
type memoryTx struct {
	store *MemoryStore
	state *memoryState
}

func (t *memoryTx) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	return getProduct(t.state, id)
}

func (t *memoryTx) GetVariant(_ context.Context, productID, variationID int64) (*domain.Variant, error) {
	return getVariant(t.state, productID, variationID)
}

func (t *memoryTx) GetAddress(_ context.Context, id int64) (*domain.Address, error) {
	a, ok := t.store.addresses[id]
	if !ok {
		return nil, fmt.Errorf("address %d: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (t *memoryTx) ShopOwner(_ context.Context, shopID int64) (int64, error) {
	owner, ok := t.store.shops[shopID]
	if !ok {
		return 0, fmt.Errorf("shop %d: %w", shopID, domain.ErrNotFound)
	}
	return owner, nil
}

func (t *memoryTx) newID() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *memoryTx) InsertCombinedOrder(_ context.Context, order *domain.CombinedOrder) error {
	order.ID = t.newID()
	order.CreatedAt = time.Now()
	stored := *order
	stored.ShippingAddress = order.ShippingAddress.Clone()
	t.state.combined[order.ID] = stored
	return nil
}

func (t *memoryTx) InsertOrder(_ context.Context, order *domain.Order) error {
	for _, existing := range t.state.orders {
		if existing.Code == order.Code {
			return fmt.Errorf("order code %s: %w", order.Code, ErrDuplicateOrderCode)
		}
	}
	order.ID = t.newID()
	order.CreatedAt = time.Now()
	stored := *order
	stored.ShippingAddress = order.ShippingAddress.Clone()
	stored.Details = nil
	t.state.orders[order.ID] = stored
	return nil
}

func (t *memoryTx) InsertOrderDetail(_ context.Context, detail *domain.OrderDetail) error {
	if _, ok := t.state.orders[detail.OrderID]; !ok {
		return fmt.Errorf("order %d: %w", detail.OrderID, domain.ErrNotFound)
	}
	detail.ID = t.newID()
	stored := *detail
	stored.Variation = detail.Variation.Clone()
	t.state.details = append(t.state.details, stored)
	return nil
}

func (t *memoryTx) DecrementProductStock(_ context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("decrement product %d by %d: %w", productID, quantity, domain.ErrValidation)
	}
	p, ok := t.state.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	if p.CurrentStock < quantity {
		return fmt.Errorf("product %d: %w", productID, domain.ErrStockConflict)
	}
	p.CurrentStock -= quantity
	t.state.products[productID] = p
	return nil
}

func (t *memoryTx) DecrementVariantStock(_ context.Context, variationID int64, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("decrement variation %d by %d: %w", variationID, quantity, domain.ErrValidation)
	}
	v, ok := t.state.variants[variationID]
	if !ok {
		return fmt.Errorf("variation %d: %w", variationID, domain.ErrNotFound)
	}
	if v.Stock < quantity {
		return fmt.Errorf("variation %d: %w", variationID, domain.ErrStockConflict)
	}
	v.Stock -= quantity
	t.state.variants[variationID] = v
	return nil
}

func (t *memoryTx) IncrementSales(_ context.Context, productID int64, quantity int) error {
	p, ok := t.state.products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	p.NumOfSale += quantity
	t.state.products[productID] = p
	return nil
}

func (t *memoryTx) EnqueueEvent(_ context.Context, event *domain.OutboxEvent) error {
	t.state.nextEvent++
	event.ID = t.state.nextEvent
	event.CreatedAt = time.Now()
	t.state.outbox = append(t.state.outbox, outboxRow{event: *event})
	return nil
}
