package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/resolver"
)

func sizeOption(labels ...string) *option.Option {
	o := &option.Option{ID: 3, Name: "Size", Type: option.TypeRadio}
	for i, l := range labels {
		o.Choices = append(o.Choices, &option.Choice{ID: []string{"c-small", "c-large", "c-huge"}[i], Label: l})
	}
	return o
}

func TestApply_RenamedOption(t *testing.T) {
	options := []*option.Option{
		{ID: 1, Name: "Length (cm)", Type: option.TypeNumber},
		{ID: 2, Name: "Width", Type: option.TypeNumber},
		{ID: 9, Name: "Price", Type: option.TypePriceFormula},
	}
	in := Input{
		Formula: "[length] * [width]",
		Manifest: []option.Reference{
			{Raw: "length", Kind: option.KindOptionDirect, OptionID: 1},
			{Raw: "width", Kind: option.KindOptionDirect, OptionID: 2},
		},
	}

	res := Apply(in, options)
	assert.True(t, res.Changed)
	assert.Equal(t, "[length_cm] * [width]", res.Formula)
	assert.Equal(t, []Rewrite{{From: "length", To: "length_cm"}}, res.Rewrites)
	assert.Equal(t, "length_cm", res.Manifest[0].Raw)

	compiled, err := resolver.Compile(res.Formula, nil, catalog.Build(options, 9))
	require.NoError(t, err)
	got, err := compiled.Program.Evaluate(map[string]any{"length_cm": 12, "width": 4})
	require.NoError(t, err)
	assert.Equal(t, 48.0, got)
}

func TestApply_Idempotent(t *testing.T) {
	options := []*option.Option{
		{ID: 1, Name: "Length (cm)", Type: option.TypeNumber},
		sizeOption("Small", "Extra Large"),
	}
	in := Input{
		Formula:         "[length] + [size.choices.large.price] + [size.count]",
		CustomVariables: []option.CustomVariable{{Name: "double", Formula: "[length] * 2"}},
		Manifest: []option.Reference{
			{Raw: "length", Kind: option.KindOptionDirect, OptionID: 1},
			{Raw: "size.choices.large.price", Kind: option.KindOptionSubproperty, OptionID: 3, Choice: "large", ChoiceID: "c-large", ChoiceIndex: 1, Property: "price"},
			{Raw: "size.count", Kind: option.KindOptionSubproperty, OptionID: 3, Property: "count"},
		},
	}

	once := Apply(in, options)
	require.True(t, once.Changed)
	assert.Equal(t, "[length_cm] + [size.choices.extra_large.price] + [size.count]", once.Formula)
	assert.Equal(t, "[length_cm] * 2", once.CustomVariables[0].Formula)
	assert.Equal(t, "[length] * 2", in.CustomVariables[0].Formula, "input is not mutated")

	twice := Apply(Input{Formula: once.Formula, CustomVariables: once.CustomVariables, Manifest: once.Manifest}, options)
	assert.False(t, twice.Changed)
	assert.Equal(t, once.Formula, twice.Formula)
	assert.Equal(t, once.CustomVariables, twice.CustomVariables)
	assert.Equal(t, once.Manifest, twice.Manifest)
	assert.Empty(t, twice.Rewrites)
}

func TestApply_ChoiceMatching(t *testing.T) {
	testCases := []struct {
		name     string
		ref      option.Reference
		options  []*option.Option
		expected string
	}{
		{
			name:     "By id after relabel",
			ref:      option.Reference{Raw: "size.choices.large.value", Kind: option.KindOptionSubproperty, OptionID: 3, Choice: "large", ChoiceID: "c-large", ChoiceIndex: 1, Property: "value"},
			options:  []*option.Option{sizeOption("Small", "XL")},
			expected: "[size.choices.xl.value]",
		},
		{
			name:     "By label when id is unknown",
			ref:      option.Reference{Raw: "sizes.choices.large.value", Kind: option.KindOptionSubproperty, OptionID: 3, Choice: "large", ChoiceID: "gone", ChoiceIndex: 0, Property: "value"},
			options:  []*option.Option{sizeOption("Small", "Large")},
			expected: "[size.choices.large.value]",
		},
		{
			name:     "By position as last resort",
			ref:      option.Reference{Raw: "size.choices.large.checked", Kind: option.KindOptionSubproperty, OptionID: 3, Choice: "large", ChoiceID: "gone", ChoiceIndex: 1, Property: "checked"},
			options:  []*option.Option{sizeOption("Small", "Big")},
			expected: "[size.choices.big.checked]",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Apply(Input{Formula: "[" + tc.ref.Raw + "]", Manifest: []option.Reference{tc.ref}}, tc.options)
			assert.True(t, res.Changed)
			assert.Equal(t, tc.expected, res.Formula)
		})
	}
}

func TestApply_NoMatchLeavesReference(t *testing.T) {
	ref := option.Reference{Raw: "size.choices.huge.value", Kind: option.KindOptionSubproperty, OptionID: 3, Choice: "huge", ChoiceID: "gone", ChoiceIndex: 5, Property: "value"}

	res := Apply(Input{Formula: "[size.choices.huge.value] * 2", Manifest: []option.Reference{ref}}, []*option.Option{sizeOption("Small")})
	assert.False(t, res.Changed)
	assert.Equal(t, "[size.choices.huge.value] * 2", res.Formula)
}

func TestApply_DeletedOptionLeftForResolver(t *testing.T) {
	ref := option.Reference{Raw: "depth", Kind: option.KindOptionDirect, OptionID: 42}

	res := Apply(Input{Formula: "[depth] + 1", Manifest: []option.Reference{ref}}, nil)
	assert.False(t, res.Changed)
	assert.Equal(t, "[depth] + 1", res.Formula)
}

func TestApply_SwappedNames(t *testing.T) {
	options := []*option.Option{
		{ID: 1, Name: "B", Type: option.TypeNumber},
		{ID: 2, Name: "A", Type: option.TypeNumber},
	}
	in := Input{
		Formula: "[a] - [b] * [a]",
		Manifest: []option.Reference{
			{Raw: "a", Kind: option.KindOptionDirect, OptionID: 1},
			{Raw: "b", Kind: option.KindOptionDirect, OptionID: 2},
		},
	}

	res := Apply(in, options)
	assert.Equal(t, "[b] - [a] * [b]", res.Formula)
}

func TestApply_IgnoresOtherReferences(t *testing.T) {
	in := Input{
		Formula: "[ length ] + [product_price] + [markup] + [lengthy]",
		Manifest: []option.Reference{
			{Raw: "length", Kind: option.KindOptionDirect, OptionID: 1},
			{Raw: "product_price", Kind: option.KindProduct, Name: "product_price"},
			{Raw: "markup", Kind: option.KindCustomVariable, Name: "markup"},
		},
	}

	res := Apply(in, []*option.Option{{ID: 1, Name: "Len", Type: option.TypeNumber}})
	assert.Equal(t, "[len] + [product_price] + [markup] + [lengthy]", res.Formula)
}

func TestApply_StringLiteralsKept(t *testing.T) {
	options := []*option.Option{
		{ID: 1, Name: "Length (cm)", Type: option.TypeNumber},
		{ID: 9, Name: "Price", Type: option.TypePriceFormula},
	}
	in := Input{
		Formula:  `[ length ] * 2 + len('[length]') + len("a \" [length]")`,
		Manifest: []option.Reference{{Raw: "length", Kind: option.KindOptionDirect, OptionID: 1}},
	}

	res := Apply(in, options)
	assert.True(t, res.Changed)
	assert.Equal(t, `[length_cm] * 2 + len('[length]') + len("a \" [length]")`, res.Formula)
}
