package domain

import (
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	Key          string          `json:"key"`
	ProductID    int64           `json:"product_id"`
	VariationID  int64           `json:"variation_id,omitempty"`
	Variation    Snapshot        `json:"variation,omitempty"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	Tax          TaxRule         `json:"tax"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	ReferralCode string          `json:"referral_code,omitempty"`
}

// Cart is the in-progress sale of one admin session.
type Cart struct {
	Lines map[string]CartLine `json:"lines"`
}

func NewCart() Cart {
	return Cart{Lines: make(map[string]CartLine)}
}

// LineKey is the product id, suffixed with the variation id when present.
func LineKey(productID, variationID int64) string {
	key := strconv.FormatInt(productID, 10)
	if variationID > 0 {
		key += "-" + strconv.FormatInt(variationID, 10)
	}
	return key
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Get(key string) (CartLine, bool) {
	line, ok := c.Lines[key]
	return line, ok
}

func (c *Cart) Put(line CartLine) {
	if c.Lines == nil {
		c.Lines = make(map[string]CartLine)
	}
	c.Lines[line.Key] = line
}

func (c *Cart) Remove(key string) bool {
	if _, ok := c.Lines[key]; !ok {
		return false
	}
	delete(c.Lines, key)
	return true
}

func (c *Cart) Clear() {
	c.Lines = make(map[string]CartLine)
}

// Sorted returns the lines ordered by product id then variation id.
func (c Cart) Sorted() []CartLine {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, l)
	}
	slices.SortFunc(lines, func(a, b CartLine) int {
		if a.ProductID != b.ProductID {
			if a.ProductID < b.ProductID {
				return -1
			}
			return 1
		}
		if a.VariationID < b.VariationID {
			return -1
		}
		if a.VariationID > b.VariationID {
			return 1
		}
		return 0
	})
	return lines
}

// Clone returns a deep copy safe to hand out as a snapshot.
func (c Cart) Clone() Cart {
	out := NewCart()
	for k, l := range c.Lines {
		l.Variation = l.Variation.Clone()
		out.Lines[k] = l
	}
	return out
}
