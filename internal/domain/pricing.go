package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultTaxRateBps is the flat sales tax rate in basis points (8%).
	DefaultTaxRateBps = 800
	// DefaultFreeShippingThreshold is the subtotal above which shipping is free.
	DefaultFreeShippingThreshold = 5000
	// DefaultFlatShippingFee applies when the free-shipping threshold is not met.
	DefaultFlatShippingFee = 599
)

// PricingConfig holds the constants the derived cart totals are computed from.
type PricingConfig struct {
	TaxRateBps            int64
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// DefaultPricing returns the storefront's stock pricing rules.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		TaxRateBps:            DefaultTaxRateBps,
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatShippingFee:       DefaultFlatShippingFee,
	}
}

func (c PricingConfig) normalised() PricingConfig {
	if c.TaxRateBps < 0 {
		c.TaxRateBps = 0
	}
	if c.FreeShippingThreshold < 0 {
		c.FreeShippingThreshold = 0
	}
	if c.FlatShippingFee < 0 {
		c.FlatShippingFee = 0
	}
	return c
}

// Subtotal sums price times quantity over the item list, skipping lines with a
// non-positive quantity or price.
func Subtotal(items []CartItem) int64 {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return subtotal
}

// Tax computes the sales tax on a subtotal, rounding half up to the nearest cent.
func Tax(subtotal, rateBps int64) int64 {
	if subtotal <= 0 || rateBps <= 0 {
		return 0
	}
	return (subtotal*rateBps + 5000) / 10000
}

// ShippingCost applies the flat-fee rule: free above the threshold, flat fee
// otherwise. An empty cart ships for nothing.
func ShippingCost(subtotal int64, cfg PricingConfig) int64 {
	cfg = cfg.normalised()
	if subtotal <= 0 {
		return 0
	}
	if subtotal > cfg.FreeShippingThreshold {
		return 0
	}
	return cfg.FlatShippingFee
}

// Summarize recomputes the full derived summary from the item list.
func Summarize(items []CartItem, cfg PricingConfig) CartSummary {
	cfg = cfg.normalised()
	subtotal := Subtotal(items)
	tax := Tax(subtotal, cfg.TaxRateBps)
	shipping := ShippingCost(subtotal, cfg)
	return CartSummary{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders cents as a grouped USD amount, e.g. 123456 -> "$1,234.56".
func FormatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return usdPrinter.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
