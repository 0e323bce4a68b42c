// Package binding turns live selections into the values formula variables are bound to.
package binding

import (
	"math"
	"strings"
	"time"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/pricing"
	"github.com/formulary-dev/formulary/internal/resolver"
)

// DateLayout is the format of date selections
const DateLayout = "2006-01-02"

// Input is the snapshot bindings are built from
type Input struct {
	Product *option.Product
	// ProductPrice overrides Product.Price, e.g. with a tax-adjusted price
	ProductPrice *float64
	Options      []*option.Option
	State        *option.State
	// Visible reports option visibility; nil means every option is visible
	Visible func(id int) bool
	// Computed holds results of price formulas evaluated earlier
	Computed map[int]float64
}

func (in Input) productPrice() float64 {
	if in.ProductPrice != nil {
		return *in.ProductPrice
	}
	if in.Product != nil {
		return in.Product.Price
	}
	return 0
}

func (in Input) pricingContext(o *option.Option) pricing.Context {
	sel, _ := in.State.Selection(o.ID)
	return pricing.Context{
		ProductPrice: in.productPrice(),
		Quantity:     in.State.Qty(),
		Characters:   pricing.CountCharacters(sel.Text),
		Files:        sel.Files,
	}
}

// Build binds every manifest reference it has data for, keyed by its bracket text. Hidden
// options, options without input and custom variables are left out; the evaluator treats
// them as 0 or "".
func Build(manifest []option.Reference, in Input) map[string]any {
	bindings := make(map[string]any, len(manifest))
	for _, ref := range manifest {
		var (
			v  any
			ok bool
		)
		switch ref.Kind {
		case option.KindProduct:
			v, ok = in.product(ref.Name)
		case option.KindOptionDirect, option.KindOptionSubproperty:
			v, ok = in.option(ref)
		}
		if ok {
			bindings[ref.Raw] = v
		}
	}
	return bindings
}

func (in Input) product(name string) (any, bool) {
	if name == resolver.Quantity {
		return in.State.Qty(), true
	}
	if name == resolver.ProductPrice {
		return in.productPrice(), true
	}
	p := in.Product
	if p == nil {
		return nil, false
	}
	switch name {
	case resolver.ProductWeight:
		return p.Weight, true
	case resolver.ProductLength:
		return p.Length, true
	case resolver.ProductWidth:
		return p.Width, true
	case resolver.ProductHeight:
		return p.Height, true
	}
	return nil, false
}

func (in Input) option(ref option.Reference) (any, bool) {
	o := option.Find(in.Options, ref.OptionID)
	if o == nil {
		return nil, false
	}
	if in.Visible != nil && !in.Visible(o.ID) {
		return nil, false
	}
	sel, _ := in.State.Selection(o.ID)

	switch {
	case ref.IsChoice():
		return in.choice(o, ref)
	case o.Type.HasChoices():
		return in.choiceAggregate(o, ref.Property)
	case o.Type.IsText():
		return textProperty(sel.Text, ref.Property)
	case o.Type.IsNumeric():
		if sel.Number == nil {
			return nil, false
		}
		return *sel.Number, true
	case o.Type == option.TypePriceFormula:
		v, ok := in.Computed[o.ID]
		return v, ok
	case o.Type == option.TypeFileUpload:
		return float64(sel.Files), true
	case o.Type == option.TypeDatePicker:
		return dateProperty(sel.Date, ref.Property)
	}
	return nil, false
}

func (in Input) choice(o *option.Option, ref option.Reference) (any, bool) {
	c, _ := o.Choice(ref.ChoiceID)
	if c == nil && ref.ChoiceIndex >= 0 && ref.ChoiceIndex < len(o.Choices) {
		c = o.Choices[ref.ChoiceIndex]
	}
	if c == nil {
		return nil, false
	}

	switch ref.Property {
	case catalog.PropChecked:
		return in.State.IsSelected(o, c.ID), true
	case catalog.PropValue:
		return c.NumericValue(), true
	case catalog.PropPrice:
		return pricing.ChoiceAmount(c, in.pricingContext(o)), true
	}
	return nil, false
}

func (in Input) choiceAggregate(o *option.Option, prop string) (any, bool) {
	selected := in.State.SelectedChoices(o)

	switch prop {
	case catalog.PropNone:
		return len(selected) == 0, true
	case catalog.PropAny:
		return len(selected) > 0, true
	case catalog.PropAll:
		return len(selected) > 0 && len(selected) == len(o.Choices), true
	case catalog.PropCount:
		return float64(len(selected)), true
	case catalog.PropPrice:
		return pricing.Sum(selected, in.pricingContext(o)), true
	}

	if len(selected) == 0 {
		return nil, false
	}
	switch prop {
	case "", catalog.PropValue:
		return selected[0].NumericValue(), true
	case catalog.PropSelected:
		return selected[0].Label, true
	case catalog.PropSum:
		sum := 0.0
		for _, c := range selected {
			sum += c.NumericValue()
		}
		return sum, true
	case catalog.PropMin:
		m := math.Inf(1)
		for _, c := range selected {
			m = math.Min(m, c.NumericValue())
		}
		return m, true
	case catalog.PropMax:
		m := math.Inf(-1)
		for _, c := range selected {
			m = math.Max(m, c.NumericValue())
		}
		return m, true
	}
	return nil, false
}

func textProperty(text, prop string) (any, bool) {
	switch prop {
	case "":
		if text == "" {
			return nil, false
		}
		return text, true
	case catalog.PropCharacters:
		return float64(pricing.CountCharacters(text)), true
	case catalog.PropWords:
		return float64(len(strings.Fields(text))), true
	case catalog.PropLines:
		trimmed := strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
		if strings.TrimSpace(trimmed) == "" {
			return 0.0, true
		}
		return float64(strings.Count(trimmed, "\n") + 1), true
	}
	return nil, false
}

func dateProperty(value, prop string) (any, bool) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, false
	}

	switch prop {
	case catalog.PropDaycount:
		// whole days since 1970-01-01
		return float64(d.Unix() / 86400), true
	case catalog.PropYear:
		return float64(d.Year()), true
	case catalog.PropMonth:
		return float64(d.Month()), true
	case catalog.PropDay:
		return float64(d.Day()), true
	case catalog.PropWeekday:
		// ISO numbering, Monday is 1 and Sunday 7
		wd := int(d.Weekday())
		if wd == 0 {
			wd = 7
		}
		return float64(wd), true
	}
	return nil, false
}
