package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/fjod/go_cart/pos-service/internal/store"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// orderTx implements store.OrderTx on top of one *sql.Tx.
type orderTx struct {
	tx *sql.Tx
}

// GetProduct locks the product row until the transaction ends.
func (t *orderTx) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return getProduct(ctx, t.tx, id, true)
}

func (t *orderTx) GetVariant(ctx context.Context, productID, variationID int64) (*domain.Variant, error) {
	return getVariant(ctx, t.tx, productID, variationID, true)
}

func (t *orderTx) GetAddress(ctx context.Context, id int64) (*domain.Address, error) {
	a, err := scanAddress(t.tx.QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query address %d: %w", id, err)
	}
	return a, nil
}

func (t *orderTx) ShopOwner(ctx context.Context, shopID int64) (int64, error) {
	var owner int64
	err := t.tx.QueryRowContext(ctx, `SELECT user_id FROM shops WHERE id = $1`, shopID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("shop %d: %w", shopID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query shop %d: %w", shopID, err)
	}
	return owner, nil
}

func (t *orderTx) InsertCombinedOrder(ctx context.Context, order *domain.CombinedOrder) error {
	address, err := marshalSnapshot(order.ShippingAddress)
	if err != nil {
		return err
	}

	query := `INSERT INTO combined_orders (user_id, shipping_address, grand_total, created_at)
	          VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`
	if err := t.tx.QueryRowContext(ctx, query, order.UserID, address, order.GrandTotal).
		Scan(&order.ID, &order.CreatedAt); err != nil {
		return fmt.Errorf("insert combined order: %w", err)
	}
	return nil
}

func (t *orderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	address, err := marshalSnapshot(order.ShippingAddress)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (combined_order_id, user_id, seller_id, code, shipping_address,
	              additional_info, shipping_type, payment_type, payment_status, delivery_status,
	              order_from, grand_total, coupon_discount, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	          RETURNING id, created_at`

	insertErr := t.tx.QueryRowContext(ctx, query,
		order.CombinedOrderID,
		order.UserID,
		order.SellerID,
		order.Code,
		address,
		order.AdditionalInfo,
		order.ShippingType,
		order.PaymentType,
		order.PaymentStatus,
		order.DeliveryStatus,
		order.OrderFrom,
		order.GrandTotal,
		order.CouponDiscount,
	).Scan(&order.ID, &order.CreatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("order code %s: %w", order.Code, store.ErrDuplicateOrderCode)
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (t *orderTx) InsertOrderDetail(ctx context.Context, detail *domain.OrderDetail) error {
	variation, err := marshalSnapshot(detail.Variation)
	if err != nil {
		return err
	}

	query := `INSERT INTO order_details (order_id, seller_id, product_id, variation_id, variation,
	              price, tax, shipping_cost, quantity, payment_status, delivery_status,
	              shipping_type, referral_code)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING id`

	if err := t.tx.QueryRowContext(ctx, query,
		detail.OrderID,
		detail.SellerID,
		detail.ProductID,
		detail.VariationID,
		variation,
		detail.Price,
		detail.Tax,
		detail.ShippingCost,
		detail.Quantity,
		detail.PaymentStatus,
		detail.DeliveryStatus,
		detail.ShippingType,
		detail.ReferralCode,
	).Scan(&detail.ID); err != nil {
		return fmt.Errorf("insert order detail: %w", err)
	}
	return nil
}

// guardedDecrement runs an UPDATE whose WHERE clause refuses to go below zero
// and reports a conflict when no row matched.
func (t *orderTx) guardedDecrement(ctx context.Context, query, what string, id int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx, query, quantity, id)
	if err != nil {
		return fmt.Errorf("decrement %s %d stock: %w", what, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement %s %d stock: %w", what, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, domain.ErrStockConflict)
	}
	return nil
}

func (t *orderTx) DecrementProductStock(ctx context.Context, productID int64, quantity int) error {
	return t.guardedDecrement(ctx,
		`UPDATE products SET current_stock = current_stock - $1 WHERE id = $2 AND current_stock >= $1`,
		"product", productID, quantity)
}

func (t *orderTx) DecrementVariantStock(ctx context.Context, variationID int64, quantity int) error {
	return t.guardedDecrement(ctx,
		`UPDATE product_stocks SET qty = qty - $1 WHERE id = $2 AND qty >= $1`,
		"variation", variationID, quantity)
}

func (t *orderTx) IncrementSales(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE products SET num_of_sale = num_of_sale + $1 WHERE id = $2`, quantity, productID)
	if err != nil {
		return fmt.Errorf("increment sales of product %d: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment sales of product %d: %w", productID, err)
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	return nil
}

func (t *orderTx) EnqueueEvent(ctx context.Context, event *domain.OutboxEvent) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	          VALUES ($1, $2, $3, NOW()) RETURNING id, created_at`
	if err := t.tx.QueryRowContext(ctx, query, event.AggregateID, event.EventType, string(event.Payload)).
		Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// GetOrder loads an order together with its details.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT id, combined_order_id, user_id, seller_id, code, shipping_address, additional_info,
	                 shipping_type, payment_type, payment_status, delivery_status, order_from,
	                 grand_total, coupon_discount, created_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var userID sql.NullInt64
	var address []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.CombinedOrderID,
		&userID,
		&order.SellerID,
		&order.Code,
		&address,
		&order.AdditionalInfo,
		&order.ShippingType,
		&order.PaymentType,
		&order.PaymentStatus,
		&order.DeliveryStatus,
		&order.OrderFrom,
		&order.GrandTotal,
		&order.CouponDiscount,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if userID.Valid {
		order.UserID = &userID.Int64
	}
	if order.ShippingAddress, err = unmarshalSnapshot(address); err != nil {
		return nil, err
	}

	details, err := r.getOrderDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Details = details
	return &order, nil
}

func (r *Repository) getOrderDetails(ctx context.Context, orderID int64) ([]domain.OrderDetail, error) {
	query := `SELECT id, order_id, seller_id, product_id, variation_id, variation, price, tax,
	                 shipping_cost, quantity, payment_status, delivery_status, shipping_type, referral_code
	          FROM order_details WHERE order_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order details: %w", err)
	}
	defer rows.Close()

	var details []domain.OrderDetail
	for rows.Next() {
		var d domain.OrderDetail
		var variation []byte
		if err := rows.Scan(
			&d.ID,
			&d.OrderID,
			&d.SellerID,
			&d.ProductID,
			&d.VariationID,
			&variation,
			&d.Price,
			&d.Tax,
			&d.ShippingCost,
			&d.Quantity,
			&d.PaymentStatus,
			&d.DeliveryStatus,
			&d.ShippingType,
			&d.ReferralCode,
		); err != nil {
			return nil, fmt.Errorf("scan order detail row: %w", err)
		}
		if d.Variation, err = unmarshalSnapshot(variation); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return details, nil
}
