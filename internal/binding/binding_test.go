package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formulary-dev/formulary/internal/option"
)

func ptr(f float64) *float64 { return &f }

func fixture() Input {
	size := &option.Option{ID: 1, Name: "Size", Type: option.TypeCheckbox, Choices: []*option.Choice{
		{ID: "s", Label: "Small", Value: ptr(5), PriceType: option.PriceFlatFee, Pricing: 2},
		{ID: "l", Label: "Large", Value: ptr(10), PriceType: option.PricePercentageInc, Pricing: 10},
		{ID: "x", Label: "12", PriceType: option.PriceFlatFee, Pricing: 1},
	}}
	return Input{
		Product: &option.Product{ID: 1, Price: 50, Weight: 2.5, Length: 30},
		Options: []*option.Option{
			size,
			{ID: 2, Name: "Length", Type: option.TypeNumber},
			{ID: 3, Name: "Message", Type: option.TypeTextarea},
			{ID: 4, Name: "Artwork", Type: option.TypeFileUpload},
			{ID: 5, Name: "Delivery", Type: option.TypeDatePicker},
			{ID: 6, Name: "Area", Type: option.TypePriceFormula},
			{ID: 7, Name: "Width", Type: option.TypeNumber},
		},
		State: &option.State{Quantity: 3, Selections: map[int]option.Selection{
			1: {ChoiceIDs: []string{"s", "l"}},
			2: {Number: ptr(12)},
			3: {Text: "Happy\nBirthday  Anna\n"},
			4: {Files: 2},
			5: {Date: "2026-03-15"},
			7: {Number: ptr(4)},
		}},
		Computed: map[int]float64{6: 48},
		Visible:  func(id int) bool { return id != 7 },
	}
}

func ref(raw string, kind option.ReferenceKind, optionID int, prop string) option.Reference {
	return option.Reference{Raw: raw, Kind: kind, OptionID: optionID, Property: prop}
}

func TestBuild(t *testing.T) {
	sub := option.KindOptionSubproperty
	direct := option.KindOptionDirect
	manifest := []option.Reference{
		{Raw: "product_price", Kind: option.KindProduct, Name: "product_price"},
		{Raw: "product_weight", Kind: option.KindProduct, Name: "product_weight"},
		{Raw: "quantity", Kind: option.KindProduct, Name: "quantity"},
		ref("size", direct, 1, ""),
		ref("size.none", sub, 1, "none"),
		ref("size.any", sub, 1, "any"),
		ref("size.all", sub, 1, "all"),
		ref("size.count", sub, 1, "count"),
		ref("size.min", sub, 1, "min"),
		ref("size.max", sub, 1, "max"),
		ref("size.sum", sub, 1, "sum"),
		ref("size.selected", sub, 1, "selected"),
		ref("size.price", sub, 1, "price"),
		{Raw: "size.choices.large.checked", Kind: sub, OptionID: 1, Choice: "large", ChoiceID: "l", ChoiceIndex: 1, Property: "checked"},
		{Raw: "size.choices.12.checked", Kind: sub, OptionID: 1, Choice: "12", ChoiceID: "x", ChoiceIndex: 2, Property: "checked"},
		{Raw: "size.choices.12.value", Kind: sub, OptionID: 1, Choice: "12", ChoiceID: "x", ChoiceIndex: 2, Property: "value"},
		{Raw: "size.choices.large.price", Kind: sub, OptionID: 1, Choice: "large", ChoiceID: "l", ChoiceIndex: 1, Property: "price"},
		ref("length", direct, 2, ""),
		ref("message", direct, 3, ""),
		ref("message.characters", sub, 3, "characters"),
		ref("message.words", sub, 3, "words"),
		ref("message.lines", sub, 3, "lines"),
		ref("artwork.count", sub, 4, "count"),
		ref("delivery.daycount", sub, 5, "daycount"),
		ref("delivery.year", sub, 5, "year"),
		ref("delivery.month", sub, 5, "month"),
		ref("delivery.day", sub, 5, "day"),
		ref("delivery.weekday", sub, 5, "weekday"),
		ref("area", direct, 6, ""),
		ref("width", direct, 7, ""),
		{Raw: "markup", Kind: option.KindCustomVariable, Name: "markup"},
	}

	expected := map[string]any{
		"product_price":              50.0,
		"product_weight":             2.5,
		"quantity":                   3.0,
		"size":                       5.0,
		"size.none":                  false,
		"size.any":                   true,
		"size.all":                   false,
		"size.count":                 2.0,
		"size.min":                   5.0,
		"size.max":                   10.0,
		"size.sum":                   15.0,
		"size.selected":              "Small",
		"size.price":                 7.0,
		"size.choices.large.checked": true,
		"size.choices.12.checked":    false,
		"size.choices.12.value":      12.0,
		"size.choices.large.price":   5.0,
		"length":                     12.0,
		"message":                    "Happy\nBirthday  Anna\n",
		"message.characters":         17.0,
		"message.words":              3.0,
		"message.lines":              2.0,
		"artwork.count":              2.0,
		"delivery.daycount":          20527.0,
		"delivery.year":              2026.0,
		"delivery.month":             3.0,
		"delivery.day":               15.0,
		"delivery.weekday":           7.0,
		"area":                       48.0,
	}

	assert.Equal(t, expected, Build(manifest, fixture()))
}

func TestBuild_ProductPriceOverride(t *testing.T) {
	in := fixture()
	in.ProductPrice = ptr(40)
	manifest := []option.Reference{
		{Raw: "product_price", Kind: option.KindProduct, Name: "product_price"},
		{Raw: "size.choices.large.price", Kind: option.KindOptionSubproperty, OptionID: 1, Choice: "large", ChoiceID: "l", ChoiceIndex: 1, Property: "price"},
	}

	got := Build(manifest, in)
	assert.Equal(t, 40.0, got["product_price"])
	assert.Equal(t, 4.0, got["size.choices.large.price"])
}

func TestBuild_EmptySelections(t *testing.T) {
	in := fixture()
	in.State = nil
	manifest := []option.Reference{
		ref("size", option.KindOptionDirect, 1, ""),
		ref("size.count", option.KindOptionSubproperty, 1, "count"),
		ref("size.none", option.KindOptionSubproperty, 1, "none"),
		ref("length", option.KindOptionDirect, 2, ""),
		ref("delivery.year", option.KindOptionSubproperty, 5, "year"),
		{Raw: "quantity", Kind: option.KindProduct, Name: "quantity"},
	}

	assert.Equal(t, map[string]any{
		"size.count": 0.0,
		"size.none":  true,
		"quantity":   1.0,
	}, Build(manifest, in))
}

func TestBuild_DeletedOption(t *testing.T) {
	manifest := []option.Reference{ref("depth", option.KindOptionDirect, 99, "")}
	assert.Empty(t, Build(manifest, fixture()))
}
