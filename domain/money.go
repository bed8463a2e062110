package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency carries the rounding precision used for every monetary total.
type Currency struct {
	Code   string
	Places int32
}

func NewCurrency(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "VND"
	}
	if code == "VND" {
		return Currency{Code: code, Places: 0}
	}
	return Currency{Code: code, Places: 2}
}

func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Places)
}

// AmountType tells whether a discount or tax value is a percentage or a flat amount.
type AmountType string

const (
	AmountPercent AmountType = "percent"
	AmountFlat    AmountType = "amount"
)

func (t AmountType) Valid() bool {
	return t == AmountPercent || t == AmountFlat
}

var hundred = decimal.NewFromInt(100)

// TaxRule is the per-product tax definition copied onto each cart line.
type TaxRule struct {
	Type  AmountType      `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// LineTax returns the unrounded tax for a line. Percentage tax applies to the
// line total, flat tax is charged per unit.
func (t TaxRule) LineTax(lineTotal decimal.Decimal, quantity int) decimal.Decimal {
	switch t.Type {
	case AmountPercent:
		return lineTotal.Mul(t.Value).Div(hundred)
	case AmountFlat:
		return t.Value.Mul(decimal.NewFromInt(int64(quantity)))
	default:
		return decimal.Zero
	}
}

// ApplyDiscount subtracts a percentage or flat discount from price, never
// going below zero.
func ApplyDiscount(price decimal.Decimal, discountType AmountType, discount decimal.Decimal) decimal.Decimal {
	if !discount.IsPositive() {
		return price
	}
	var off decimal.Decimal
	switch discountType {
	case AmountPercent:
		off = price.Mul(discount).Div(hundred)
	case AmountFlat:
		off = discount
	default:
		return price
	}
	result := price.Sub(off)
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}
