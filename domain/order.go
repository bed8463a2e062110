package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingType string

const (
	ShippingHomeDelivery ShippingType = "home_delivery"
	ShippingPickupPoint  ShippingType = "pickup_point"
)

func (s ShippingType) Valid() bool {
	return s == ShippingHomeDelivery || s == ShippingPickupPoint
}

type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusUnpaid PaymentStatus = "unpaid"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPaid || s == PaymentStatusUnpaid
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusConfirmed DeliveryStatus = "confirmed"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// OrderFromPOS tags orders created at the point of sale.
const OrderFromPOS = "pos"

// CombinedOrder is the buyer-level aggregate wrapping the per-seller orders of one checkout.
type CombinedOrder struct {
	ID              int64           `json:"id"`
	UserID          *int64          `json:"user_id,omitempty"`
	ShippingAddress Snapshot        `json:"shipping_address,omitempty"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Order struct {
	ID              int64           `json:"id"`
	CombinedOrderID int64           `json:"combined_order_id"`
	UserID          *int64          `json:"user_id,omitempty"`
	SellerID        int64           `json:"seller_id"`
	Code            string          `json:"code"`
	ShippingAddress Snapshot        `json:"shipping_address,omitempty"`
	AdditionalInfo  string          `json:"additional_info,omitempty"`
	ShippingType    ShippingType    `json:"shipping_type"`
	PaymentType     string          `json:"payment_type"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	DeliveryStatus  DeliveryStatus  `json:"delivery_status"`
	OrderFrom       string          `json:"order_from"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	CouponDiscount  decimal.Decimal `json:"coupon_discount"`
	CreatedAt       time.Time       `json:"created_at"`
	Details         []OrderDetail   `json:"details,omitempty"`
}

type OrderDetail struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	SellerID       int64           `json:"seller_id"`
	ProductID      int64           `json:"product_id"`
	VariationID    int64           `json:"variation_id,omitempty"`
	Variation      Snapshot        `json:"variation,omitempty"`
	Price          decimal.Decimal `json:"price"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Quantity       int             `json:"quantity"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	DeliveryStatus DeliveryStatus  `json:"delivery_status"`
	ShippingType   ShippingType    `json:"shipping_type"`
	ReferralCode   string          `json:"referral_code,omitempty"`
}

// OutboxEvent is written in the checkout transaction and published later.
type OutboxEvent struct {
	ID          int64     `json:"id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Payload     []byte    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

const EventOrderCreated = "order.created"
