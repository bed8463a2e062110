package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	ShopID         int64           `json:"shop_id"`
	CategoryID     int64           `json:"category_id"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Discount       decimal.Decimal `json:"discount"`
	DiscountType   AmountType      `json:"discount_type"`
	CurrentStock   int             `json:"current_stock"`
	Tax            TaxRule         `json:"tax"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	VariantProduct bool            `json:"variant_product"`
	Published      bool            `json:"published"`
	NumOfSale      int             `json:"num_of_sale"`
}

// EffectiveUnitPrice applies the product discount to base, which is the
// product price or the price of the chosen variant.
func (p Product) EffectiveUnitPrice(base decimal.Decimal) decimal.Decimal {
	return ApplyDiscount(base, p.DiscountType, p.Discount)
}

// Variant is one attribute combination of a product with its own price and stock.
type Variant struct {
	ID         int64           `json:"id"`
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Attributes Snapshot        `json:"attributes"`
}

// Snapshot is a key-value structured value stored as JSON by the persistence
// layer (variation attributes, shipping address).
type Snapshot map[string]string

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type ProductQuery struct {
	Search     string
	CategoryID int64
	ShopID     int64
	Page       int
	PageSize   int
}

// Offset converts the 1-based page into a row offset.
func (q ProductQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Total    int       `json:"total"`
}

// Variations lists a product's variants plus, per attribute name, the sorted
// distinct values found across them.
type Variations struct {
	ProductID  int64               `json:"product_id"`
	Variants   []Variant           `json:"variants"`
	Attributes map[string][]string `json:"attributes"`
}
