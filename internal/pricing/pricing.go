// Package pricing computes the monetary contribution of selected choices.
package pricing

import (
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/formulary-dev/formulary/internal/option"
)

// Places is the precision amounts are rounded to
const Places = 4

var hundred = decimal.NewFromInt(100)

// Context carries what a price type may scale by
type Context struct {
	ProductPrice float64
	Quantity     float64
	// Characters is the non-whitespace character count of the option's text
	Characters int
	Files      int
}

// ClampPercentage bounds a percentage price: decreases to [0, 100], increases to >= 0.
// Out-of-range values are clamped rather than rejected.
func ClampPercentage(t option.PriceType, pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if t == option.PricePercentageSub && pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// Amount is the exact contribution of one selected choice
func Amount(c *option.Choice, ctx Context) decimal.Decimal {
	pricing := decimal.NewFromFloat(c.Pricing)

	switch c.PriceType {
	case option.PriceFlatFee:
		return pricing
	case option.PriceQuantityBased:
		return pricing.Mul(decimal.NewFromFloat(ctx.Quantity))
	case option.PricePercentageInc:
		pct := ClampPercentage(c.PriceType, pricing)
		return decimal.NewFromFloat(ctx.ProductPrice).Mul(pct).Div(hundred)
	case option.PricePercentageSub:
		pct := ClampPercentage(c.PriceType, pricing)
		return decimal.NewFromFloat(ctx.ProductPrice).Mul(pct).Div(hundred).Neg()
	case option.PriceCharCount:
		return pricing.Mul(decimal.NewFromInt(int64(ctx.Characters)))
	case option.PriceFileCount:
		return pricing.Mul(decimal.NewFromInt(int64(ctx.Files)))
	}
	return decimal.Zero
}

// ChoiceAmount is Amount rounded to Places, halves away from zero
func ChoiceAmount(c *option.Choice, ctx Context) float64 {
	return Round(Amount(c, ctx))
}

// Sum adds the contributions of several choices before rounding once
func Sum(choices []*option.Choice, ctx Context) float64 {
	total := decimal.Zero
	for _, c := range choices {
		total = total.Add(Amount(c, ctx))
	}
	return Round(total)
}

// Round converts an exact amount to the float used in bindings and totals
func Round(d decimal.Decimal) float64 {
	f, _ := d.Round(Places).Float64()
	return f
}

// CountCharacters counts the characters of text that are not whitespace
func CountCharacters(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Total adds already rounded amounts without accumulating float error
func Total(amounts []float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return Round(total)
}
