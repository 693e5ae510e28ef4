package service

import (
	"github.com/example/foodhall/pkg/models"
	"github.com/shopspring/decimal"
)

// Pricing turns order lines into totals. All figures are rounded to two decimals.
type Pricing struct {
	TaxRate  decimal.Decimal
	Shipping decimal.Decimal
}

func NewPricing(taxRate, shipping float64) Pricing {
	return Pricing{
		TaxRate:  decimal.NewFromFloat(taxRate),
		Shipping: decimal.NewFromFloat(shipping).Round(2),
	}
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

func (p Pricing) Compute(lines []models.OrderLine) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(l.Item.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: p.Shipping,
		Total:    subtotal.Add(tax).Add(p.Shipping),
	}
}

// Matches reports whether client-claimed figures agree with t to the cent.
func (t Totals) Matches(subtotal, tax, total float64) bool {
	return decimal.NewFromFloat(subtotal).Round(2).Equal(t.Subtotal) &&
		decimal.NewFromFloat(tax).Round(2).Equal(t.Tax) &&
		decimal.NewFromFloat(total).Round(2).Equal(t.Total)
}

func (t Totals) apply(o *models.Order) {
	o.Subtotal = t.Subtotal.InexactFloat64()
	o.Tax = t.Tax.InexactFloat64()
	o.ShippingCost = t.Shipping.InexactFloat64()
	o.Total = t.Total.InexactFloat64()
}
