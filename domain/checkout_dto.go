package domain

import "github.com/shopspring/decimal"

type CreateOrderRequest struct {
	SessionID         string
	PaymentType       string
	PaymentStatus     PaymentStatus
	ShippingAddressID *int64
	ShippingType      ShippingType
	AdditionalInfo    string
	ShopID            *int64
}

type CreateOrderResponse struct {
	OrderID         int64  `json:"order_id"`
	CombinedOrderID int64  `json:"combined_order_id"`
	OrderCode       string `json:"order_code"`
	Totals          Totals `json:"totals"`
}

// LineTotals is the priced breakdown of one cart line.
type LineTotals struct {
	Key       string          `json:"key"`
	LineTotal decimal.Decimal `json:"line_total"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
}

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Shipping   decimal.Decimal `json:"shipping"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ItemCount  int             `json:"item_count"`
	Currency   string          `json:"currency"`
	Lines      []LineTotals    `json:"lines"`
}

// CartView is what the POS screen renders: ordered lines, totals and the selected buyer.
type CartView struct {
	SessionID string            `json:"session_id"`
	Lines     []CartLine        `json:"lines"`
	Totals    Totals            `json:"totals"`
	Customer  *SelectedCustomer `json:"customer,omitempty"`
}
