package pricing

import (
	"github.com/shopspring/decimal"
)

// TaxSettings describes how the store stores and displays prices. Rate is a percentage.
type TaxSettings struct {
	PricesIncludeTax    bool    `mapstructure:"prices_include_tax" json:"prices_include_tax" yaml:"prices_include_tax"`
	DisplayIncludingTax bool    `mapstructure:"display_including_tax" json:"display_including_tax" yaml:"display_including_tax"`
	Rate                float64 `mapstructure:"rate" json:"rate" yaml:"rate"`
}

// NeedsAdjustment reports whether displayed and stored prices differ in tax treatment
func (t TaxSettings) NeedsAdjustment() bool {
	return t.Rate != 0 && t.PricesIncludeTax != t.DisplayIncludingTax
}

// AdjustProductPrice converts a product price as displayed to the customer into the basis the
// store keeps prices in, so formulas recomputed for the cart match the stored catalog.
func (t TaxSettings) AdjustProductPrice(displayed float64) float64 {
	if !t.NeedsAdjustment() {
		return displayed
	}

	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(t.Rate).Div(hundred))
	price := decimal.NewFromFloat(displayed)
	if t.DisplayIncludingTax {
		// shown with tax, stored without
		return Round(price.Div(factor))
	}
	return Round(price.Mul(factor))
}
