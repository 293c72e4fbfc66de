package service

import (
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/domain"
)

// DiscountPolicy returns the discount for a checkout. The result is capped
// so a total never goes below zero.
type DiscountPolicy func(subtotal decimal.Decimal, user *domain.Identity) decimal.Decimal

// NoDiscount is the default policy
func NoDiscount(decimal.Decimal, *domain.Identity) decimal.Decimal {
	return decimal.Zero
}

// Pricing turns a cart subtotal into order totals
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	Discount              DiscountPolicy
}

// Quote holds computed order totals. Amounts are not rounded.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func NewPricing(cfg config.CheckoutConfig) Pricing {
	return Pricing{
		TaxRate:               cfg.TaxRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
		Discount:              NoDiscount,
	}
}

func (p Pricing) Quote(subtotal decimal.Decimal, user *domain.Identity) Quote {
	q := Quote{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(p.TaxRate),
		Shipping: p.FlatShippingFee,
	}
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		q.Shipping = decimal.Zero
	}

	gross := q.Subtotal.Add(q.Tax).Add(q.Shipping)
	if p.Discount != nil {
		q.Discount = p.Discount(subtotal, user)
	}
	if q.Discount.IsNegative() {
		q.Discount = decimal.Zero
	}
	if q.Discount.GreaterThan(gross) {
		q.Discount = gross
	}
	q.Total = gross.Sub(q.Discount)
	return q
}
