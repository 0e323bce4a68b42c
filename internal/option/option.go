package option

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Type is the closed set of option type tags
type Type string

const (
	TypeText          Type = "text"
	TypeTextarea      Type = "textarea"
	TypeNumber        Type = "number"
	TypeCheckbox      Type = "checkbox"
	TypeRadio         Type = "radio"
	TypeDropdown      Type = "dropdown"
	TypeImages        Type = "images"
	TypeColorSwatches Type = "color_swatches"
	TypeTextLabels    Type = "text_labels"
	TypeFileUpload    Type = "file_upload"
	TypeDatePicker    Type = "date_picker"
	TypeCustomerPrice Type = "customer_price"
	TypeProduct       Type = "product"
	TypePriceFormula  Type = "price_formula"
	TypeHTML          Type = "html"
)

// Types lists every known type tag in display order
var Types = []Type{
	TypeText, TypeTextarea, TypeNumber, TypeCheckbox, TypeRadio, TypeDropdown, TypeImages,
	TypeColorSwatches, TypeTextLabels, TypeFileUpload, TypeDatePicker, TypeCustomerPrice,
	TypeProduct, TypePriceFormula, TypeHTML,
}

// Valid reports whether t is a known type tag
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// HasChoices reports whether options of this type are choice lists
func (t Type) HasChoices() bool {
	switch t {
	case TypeCheckbox, TypeRadio, TypeDropdown, TypeImages, TypeColorSwatches, TypeTextLabels, TypeProduct:
		return true
	}
	return false
}

// IsText reports whether the option collects free text
func (t Type) IsText() bool {
	return t == TypeText || t == TypeTextarea
}

// IsNumeric reports whether the option collects a single number
func (t Type) IsNumeric() bool {
	return t == TypeNumber || t == TypeCustomerPrice
}

// PriceType selects how a choice contributes to the price
type PriceType string

const (
	PriceNone          PriceType = "none"
	PriceFlatFee       PriceType = "flat_fee"
	PriceQuantityBased PriceType = "quantity_based"
	PricePercentageInc PriceType = "percentage_inc"
	PricePercentageSub PriceType = "percentage_sub"
	PriceCharCount     PriceType = "char_count"
	PriceFileCount     PriceType = "file_count"
)

// Option is one configurable field of a product option group
type Option struct {
	ID               int       `yaml:"id" json:"id" jsonschema:"required"`
	Name             string    `yaml:"name" json:"name" jsonschema:"required"`
	Type             Type      `yaml:"type" json:"type" jsonschema:"required"`
	Required         bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Choices          []*Choice `yaml:"choices,omitempty" json:"choices,omitempty"`
	Settings         Settings  `yaml:"settings,omitempty" json:"settings,omitempty"`
	ConditionalLogic *Rule     `yaml:"conditional_logic,omitempty" json:"conditional_logic,omitempty"`
}

// FormulaSettings returns the price-formula settings of the option, or nil for other types
func (o *Option) FormulaSettings() *FormulaSettings {
	if o == nil || o.Type != TypePriceFormula {
		return nil
	}
	if fs, ok := o.Settings.(*FormulaSettings); ok {
		return fs
	}
	return nil
}

// Choice returns the choice with the given stable identifier
func (o *Option) Choice(id string) (*Choice, int) {
	for i, c := range o.Choices {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}

// EnsureChoiceIDs assigns identifiers to choices created without one
func (o *Option) EnsureChoiceIDs() {
	for _, c := range o.Choices {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
	}
}

// Choice is one selectable value within a choice-bearing option. Pricing-only options
// (text, file upload) carry a single choice holding their price.
type Choice struct {
	ID        string    `yaml:"id" json:"id"`
	Label     string    `yaml:"label" json:"label" jsonschema:"required"`
	Value     *float64  `yaml:"value,omitempty" json:"value,omitempty"`
	PriceType PriceType `yaml:"price_type,omitempty" json:"price_type,omitempty"`
	Pricing   float64   `yaml:"pricing,omitempty" json:"pricing,omitempty"`
	Selected  bool      `yaml:"selected,omitempty" json:"selected,omitempty"`
	TermRef   string    `yaml:"term_ref,omitempty" json:"term_ref,omitempty"`
}

// NumericValue is the value a formula sees for this choice. Without an explicit value the
// label is parsed as a number, falling back to zero.
func (c *Choice) NumericValue() float64 {
	if c.Value != nil {
		return *c.Value
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(c.Label), 64); err == nil {
		return f
	}
	return 0
}

// CustomVariable is a named sub-formula usable as [name] inside a formula
type CustomVariable struct {
	Name    string `yaml:"name" json:"name" jsonschema:"required"`
	Formula string `yaml:"formula" json:"formula" jsonschema:"required"`
}

// Group is an ordered set of options attached to a product
type Group struct {
	ID      int       `yaml:"id" json:"id"`
	Name    string    `yaml:"name,omitempty" json:"name,omitempty"`
	Options []*Option `yaml:"options" json:"options" jsonschema:"required"`
}

// Option returns the option with the given id
func (g *Group) Option(id int) *Option {
	return Find(g.Options, id)
}

// Find returns the option with the given id from options
func Find(options []*Option, id int) *Option {
	for _, o := range options {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Product carries the product properties formulas can reference and its option groups
type Product struct {
	ID     int      `yaml:"id" json:"id" jsonschema:"required"`
	Name   string   `yaml:"name,omitempty" json:"name,omitempty"`
	Price  float64  `yaml:"price" json:"price" jsonschema:"required"`
	Weight float64  `yaml:"weight,omitempty" json:"weight,omitempty"`
	Length float64  `yaml:"length,omitempty" json:"length,omitempty"`
	Width  float64  `yaml:"width,omitempty" json:"width,omitempty"`
	Height float64  `yaml:"height,omitempty" json:"height,omitempty"`
	Groups []*Group `yaml:"groups" json:"groups"`
}

// FindOption locates an option across all groups of the product
func (p *Product) FindOption(id int) (*Group, *Option) {
	for _, g := range p.Groups {
		if o := g.Option(id); o != nil {
			return g, o
		}
	}
	return nil, nil
}
