package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
)

func testOptions() []*option.Option {
	return []*option.Option{
		{ID: 1, Name: "Length", Type: option.TypeNumber},
		{ID: 2, Name: "Width", Type: option.TypeNumber},
		{ID: 3, Name: "Size", Type: option.TypeRadio, Choices: []*option.Choice{
			{ID: "c-small", Label: "Small"},
			{ID: "c-large", Label: "Large"},
		}},
		{ID: 4, Name: "Notes", Type: option.TypeTextarea},
		{ID: 5, Name: "Artwork", Type: option.TypeFileUpload},
		{ID: 6, Name: "Delivery", Type: option.TypeDatePicker},
		{ID: 7, Name: "Area", Type: option.TypePriceFormula},
		{ID: 8, Name: "Total", Type: option.TypePriceFormula},
	}
}

func resolveOne(t *testing.T, text string, editing int) (option.Reference, error) {
	t.Helper()
	tree, err := formula.Parse(text)
	require.NoError(t, err)
	refs, err := New(catalog.Build(testOptions(), editing), nil).Resolve(tree)
	if err != nil {
		return option.Reference{}, err
	}
	require.Len(t, refs, 1)
	return refs[0], nil
}

func TestResolve_Kinds(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected option.Reference
	}{
		{
			name:     "Direct number",
			text:     "[length]",
			expected: option.Reference{Raw: "length", Kind: option.KindOptionDirect, OptionID: 1},
		},
		{
			name:     "Choice aggregate",
			text:     "[size.count]",
			expected: option.Reference{Raw: "size.count", Kind: option.KindOptionSubproperty, OptionID: 3, Property: "count"},
		},
		{
			name: "Single choice",
			text: "[size.choices.large.value]",
			expected: option.Reference{
				Raw: "size.choices.large.value", Kind: option.KindOptionSubproperty, OptionID: 3,
				Choice: "large", ChoiceID: "c-large", ChoiceIndex: 1, Property: "value",
			},
		},
		{
			name:     "Text property",
			text:     "[notes.words]",
			expected: option.Reference{Raw: "notes.words", Kind: option.KindOptionSubproperty, OptionID: 4, Property: "words"},
		},
		{
			name:     "File count",
			text:     "[artwork.count]",
			expected: option.Reference{Raw: "artwork.count", Kind: option.KindOptionSubproperty, OptionID: 5, Property: "count"},
		},
		{
			name:     "Date part",
			text:     "[delivery.weekday]",
			expected: option.Reference{Raw: "delivery.weekday", Kind: option.KindOptionSubproperty, OptionID: 6, Property: "weekday"},
		},
		{
			name:     "Earlier formula",
			text:     "[area]",
			expected: option.Reference{Raw: "area", Kind: option.KindOptionDirect, OptionID: 7},
		},
		{
			name:     "Product property",
			text:     "[product_price]",
			expected: option.Reference{Raw: "product_price", Kind: option.KindProduct, Name: "product_price"},
		},
		{
			name:     "Case-insensitive lookup",
			text:     "[Length]",
			expected: option.Reference{Raw: "Length", Kind: option.KindOptionDirect, OptionID: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ref, err := resolveOne(t, tc.text, 8)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ref)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	testCases := []struct {
		name string
		text string
		kind formula.ErrorKind
		msg  string
	}{
		{name: "Unknown option", text: "[height]", kind: formula.KindUnresolvedVariable, msg: "no option"},
		{name: "Unknown sub-property", text: "[length.count]", kind: formula.KindUnresolvedVariable, msg: "no sub-properties"},
		{name: "Wrong suffix for type", text: "[notes.sum]", kind: formula.KindUnresolvedVariable, msg: "unknown sub-property"},
		{name: "File upload needs suffix", text: "[artwork]", kind: formula.KindUnresolvedVariable, msg: "must be referenced with a sub-property"},
		{name: "Unknown choice", text: "[size.choices.medium.value]", kind: formula.KindUnresolvedVariable, msg: "no choice"},
		{name: "Bad choice property", text: "[size.choices.large.sum]", kind: formula.KindUnresolvedVariable, msg: "unknown choice property"},
		{name: "Choices on text", text: "[notes.choices.a.value]", kind: formula.KindUnresolvedVariable, msg: "have no choices"},
		{name: "Product suffix", text: "[product_price.value]", kind: formula.KindUnresolvedVariable, msg: "no sub-properties"},
		{name: "Self reference", text: "[area]", kind: formula.KindForwardReference},
		{name: "Later formula", text: "[total]", kind: formula.KindForwardReference},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveOne(t, tc.text, 7)
			require.Error(t, err)
			assert.Equal(t, tc.kind, formula.KindOf(err))
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestCompile_CustomVariableSelfCycle(t *testing.T) {
	custom := []option.CustomVariable{{Name: "discount", Formula: "[discount]"}}

	_, err := Compile("[length] - [discount]", custom, catalog.Build(testOptions(), 7))
	require.Error(t, err)
	assert.ErrorIs(t, err, formula.ErrCyclicCustomVariable)
}

func TestCompile_CustomVariableIndirectCycle(t *testing.T) {
	custom := []option.CustomVariable{
		{Name: "a", Formula: "[b] + 1"},
		{Name: "b", Formula: "[c] * 2"},
		{Name: "c", Formula: "[a]"},
	}

	_, err := Compile("1", custom, catalog.Build(testOptions(), 7))
	require.Error(t, err)
	assert.Equal(t, formula.KindCyclicCustomVariable, formula.KindOf(err))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestCompile_Manifest(t *testing.T) {
	custom := []option.CustomVariable{
		{Name: "Base Area", Formula: "[length] * [width]"},
		{Name: "surcharge", Formula: "[size.choices.large.checked] ? [base_area] * 0.1 : 0"},
	}

	compiled, err := Compile("[base_area] + [surcharge] + [length]", custom, catalog.Build(testOptions(), 7))
	require.NoError(t, err)

	raws := make([]string, len(compiled.Manifest))
	for i, ref := range compiled.Manifest {
		raws[i] = ref.Raw
	}
	assert.Equal(t, []string{"base_area", "surcharge", "length", "width", "size.choices.large.checked"}, raws)
	assert.Equal(t, option.KindCustomVariable, compiled.Manifest[0].Kind)

	got, err := compiled.Program.Evaluate(map[string]any{
		"length":                     10.0,
		"width":                      2.0,
		"size.choices.large.checked": true,
	})
	require.NoError(t, err)
	assert.Equal(t, 32.0, got)
}

func TestCompile_OptionShadowsCustomVariable(t *testing.T) {
	custom := []option.CustomVariable{{Name: "length", Formula: "[length] * 2"}}

	compiled, err := Compile("[length]", custom, catalog.Build(testOptions(), 7))
	require.NoError(t, err, "[length] names the option, so the custom variable is not a cycle")
	assert.Equal(t, option.KindOptionDirect, compiled.Manifest[0].Kind)
}

func TestCompile_CustomVariableErrorsAreReported(t *testing.T) {
	custom := []option.CustomVariable{{Name: "x", Formula: "[missing] +"}}

	_, err := Compile("[x]", custom, catalog.Build(testOptions(), 7))
	require.Error(t, err)
	assert.Equal(t, formula.KindSyntaxError, formula.KindOf(err))
	assert.Contains(t, err.Error(), "custom variable x")
}
