package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/pos-service/domain"
)

const productColumns = `id, name, shop_id, category_id, unit_price, discount, discount_type,
	current_stock, tax, tax_type, shipping_cost, variant_product, published, num_of_sale`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.ShopID,
		&p.CategoryID,
		&p.UnitPrice,
		&p.Discount,
		&p.DiscountType,
		&p.CurrentStock,
		&p.Tax.Value,
		&p.Tax.Type,
		&p.ShippingCost,
		&p.VariantProduct,
		&p.Published,
		&p.NumOfSale,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanVariant(row rowScanner) (*domain.Variant, error) {
	var v domain.Variant
	var attrs []byte
	if err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &v.Stock, &attrs); err != nil {
		return nil, err
	}
	snapshot, err := unmarshalSnapshot(attrs)
	if err != nil {
		return nil, err
	}
	v.Attributes = snapshot
	return &v, nil
}

func getProduct(ctx context.Context, q queryer, id int64, lock bool) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	p, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product %d: %w", id, err)
	}
	return p, nil
}

func getVariant(ctx context.Context, q queryer, productID, variationID int64, lock bool) (*domain.Variant, error) {
	query := `SELECT id, product_id, variant, sku, price, qty, attributes
	          FROM product_stocks WHERE id = $1 AND product_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}

	v, err := scanVariant(q.QueryRowContext(ctx, query, variationID, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("variation %d of product %d: %w", variationID, productID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query variation %d: %w", variationID, err)
	}
	return v, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, r.db, id, false)
}

func (r *Repository) GetVariant(ctx context.Context, productID, variationID int64) (*domain.Variant, error) {
	return getVariant(ctx, r.db, productID, variationID, false)
}

// SearchProducts builds the WHERE clause from the non-empty filters and pages
// with parameterized LIMIT/OFFSET.
func (r *Repository) SearchProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	conditions := []string{"published = TRUE"}
	args := make([]any, 0, 5)

	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if q.CategoryID > 0 {
		args = append(args, q.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if q.ShopID > 0 {
		args = append(args, q.ShopID)
		conditions = append(conditions, fmt.Sprintf("shop_id = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	page := &domain.ProductPage{Page: max(q.Page, 1), PageSize: q.PageSize, Products: make([]domain.Product, 0)}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	args = append(args, q.PageSize, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		page.Products = append(page.Products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return page, nil
}

func (r *Repository) ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	query := `SELECT id, product_id, variant, sku, price, qty, attributes
	          FROM product_stocks WHERE product_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants of product %d: %w", productID, err)
	}
	defer rows.Close()

	variants := make([]domain.Variant, 0)
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return variants, nil
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone FROM users WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query customer %d: %w", id, err)
	}
	return &c, nil
}

const addressColumns = `id, user_id, address, country, state, city, postal_code, phone`

func scanAddress(row rowScanner) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.Address, &a.Country, &a.State, &a.City, &a.PostalCode, &a.Phone); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) GetCustomerAddresses(ctx context.Context, customerID int64) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query addresses of customer %d: %w", customerID, err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return addresses, nil
}
