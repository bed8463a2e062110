// Package pricing computes cart totals. It has no side effects, so the same
// engine is used to render the cart and to price an order at commit time.
package pricing

import (
	"github.com/fjod/go_cart/pos-service/domain"
	"github.com/shopspring/decimal"
)

type Engine struct {
	currency domain.Currency
}

func NewEngine(currency domain.Currency) *Engine {
	return &Engine{currency: currency}
}

func (e *Engine) Currency() domain.Currency {
	return e.currency
}

// LineTotals prices one line. Line total and tax are each rounded once, after
// the percentage has been applied to the unrounded amount.
func (e *Engine) LineTotals(line domain.CartLine) domain.LineTotals {
	raw := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	lineTotal := e.currency.Round(raw)
	return domain.LineTotals{
		Key:       line.Key,
		LineTotal: lineTotal,
		Tax:       e.currency.Round(line.Tax.LineTax(raw, line.Quantity)),
		Shipping:  e.currency.Round(line.ShippingCost),
	}
}

// ComputeTotals prices the whole cart. Shipping is flat per line, not per unit.
// Discount stays zero until a coupon source exists.
func (e *Engine) ComputeTotals(cart domain.Cart) domain.Totals {
	totals := domain.Totals{
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
		Currency: e.currency.Code,
		Lines:    make([]domain.LineTotals, 0, len(cart.Lines)),
	}

	for _, line := range cart.Sorted() {
		lt := e.LineTotals(line)
		totals.Lines = append(totals.Lines, lt)
		totals.Subtotal = totals.Subtotal.Add(lt.LineTotal)
		totals.Tax = totals.Tax.Add(lt.Tax)
		totals.Shipping = totals.Shipping.Add(lt.Shipping)
		totals.ItemCount += line.Quantity
	}

	totals.GrandTotal = totals.Subtotal.Add(totals.Tax).Add(totals.Shipping).Sub(totals.Discount)
	return totals
}
