package engine

import (
	"github.com/formulary-dev/formulary/internal/option"
)

func formulaOption(id int, name, expression string, custom ...option.CustomVariable) *option.Option {
	return &option.Option{ID: id, Name: name, Type: option.TypePriceFormula, Settings: &option.FormulaSettings{
		Formula:         option.Formula{Expression: expression},
		CustomVariables: custom,
	}}
}

// bannerProduct is a printed banner priced by area, with a finish, an optional engraving and
// a formula that no longer resolves.
func bannerProduct() *option.Product {
	return &option.Product{ID: 7, Name: "Banner", Price: 100, Groups: []*option.Group{{ID: 1, Name: "Banner options", Options: []*option.Option{
		{ID: 1, Name: "Length", Type: option.TypeNumber, Required: true, Settings: &option.NumberSettings{Min: ptr(1)}},
		{ID: 2, Name: "Width", Type: option.TypeNumber, Settings: &option.NumberSettings{}},
		{ID: 3, Name: "Finish", Type: option.TypeRadio, Settings: &option.ChoiceSettings{}, Choices: []*option.Choice{
			{ID: "gloss", Label: "Gloss", PriceType: option.PriceFlatFee, Pricing: 5},
			{ID: "matte", Label: "Matte", PriceType: option.PricePercentageInc, Pricing: 10},
		}},
		formulaOption(4, "Area", "[length] * [width]"),
		formulaOption(5, "Cost", "[area] * 0.5 + [finish.price] + [base]", option.CustomVariable{Name: "base", Formula: "[product_price] * 0.1"}),
		{
			ID: 6, Name: "Engraving", Type: option.TypeText, Settings: &option.TextSettings{},
			Choices: []*option.Choice{{ID: "eng", Label: "Engraving", PriceType: option.PriceCharCount, Pricing: 0.5}},
			ConditionalLogic: &option.Rule{Visibility: option.VisibilityShow, Relation: option.RelationAnd, Conditions: []option.Condition{
				{OptionID: 3, Operator: option.OpEquals, Value: "gloss"},
			}},
		},
		formulaOption(8, "Broken", "[missing] * 2"),
	}}}}
}

func bannerState(finish string) *option.State {
	return &option.State{Quantity: 2, Selections: map[int]option.Selection{
		1: {Number: ptr(12)},
		2: {Number: ptr(4)},
		3: {ChoiceIDs: []string{finish}},
		6: {Text: "Hi Bob"},
	}}
}
