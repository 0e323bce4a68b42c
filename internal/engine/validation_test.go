package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/option"
)

func TestValidateInput_RequiredFieldMissing(t *testing.T) {
	options := []*option.Option{
		{ID: 1, Name: "Name", Type: option.TypeText, Required: true, Settings: &option.TextSettings{}},
		{ID: 2, Name: "Notes", Type: option.TypeTextarea, Settings: &option.TextSettings{}},
	}

	result := ValidateInput(options, &option.State{}, nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].OptionID)
	assert.Contains(t, result.Errors[0].Message, "required field is missing")
}

func TestValidateInput_WhitespaceIsNoInput(t *testing.T) {
	options := []*option.Option{{ID: 1, Name: "Name", Type: option.TypeText, Required: true}}
	state := &option.State{Selections: map[int]option.Selection{1: {Text: "  \n"}}}

	result := ValidateInput(options, state, nil)
	assert.False(t, result.Valid)
}

func TestValidateInput_HiddenOptionsSkipped(t *testing.T) {
	options := []*option.Option{{ID: 1, Name: "Name", Type: option.TypeText, Required: true}}

	result := ValidateInput(options, &option.State{}, func(int) bool { return false })
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateInput_DefaultSelectionSatisfiesRequired(t *testing.T) {
	options := []*option.Option{{ID: 1, Name: "Size", Type: option.TypeRadio, Required: true, Choices: []*option.Choice{
		{ID: "s", Label: "Small", Selected: true},
	}}}

	result := ValidateInput(options, &option.State{}, nil)
	assert.True(t, result.Valid)
}

func TestValidateInput_Constraints(t *testing.T) {
	extras := &option.Option{ID: 1, Name: "Extras", Type: option.TypeCheckbox,
		Settings: &option.ChoiceSettings{MinSelections: 2, MaxSelections: 2},
		Choices: []*option.Choice{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}},
	}
	name := &option.Option{ID: 2, Name: "Name", Type: option.TypeText, Settings: &option.TextSettings{MinLength: 2, MaxLength: 5}}
	length := &option.Option{ID: 3, Name: "Length", Type: option.TypeNumber, Settings: &option.NumberSettings{Min: ptr(1), Max: ptr(10)}}
	artwork := &option.Option{ID: 4, Name: "Artwork", Type: option.TypeFileUpload, Settings: &option.FileSettings{MaxFiles: 1}}
	delivery := &option.Option{ID: 5, Name: "Delivery", Type: option.TypeDatePicker, Settings: &option.DateSettings{MinDate: "2026-01-01", MaxDate: "2026-12-31"}}
	options := []*option.Option{extras, name, length, artwork, delivery}

	testCases := []struct {
		name     string
		sel      map[int]option.Selection
		optionID int
		message  string
	}{
		{"too few choices", map[int]option.Selection{1: {ChoiceIDs: []string{"a"}}}, 1, "at least 2"},
		{"too many choices", map[int]option.Selection{1: {ChoiceIDs: []string{"a", "b", "c"}}}, 1, "at most 2"},
		{"unknown choice", map[int]option.Selection{1: {ChoiceIDs: []string{"a", "b", "zz"}}}, 1, "unknown choice"},
		{"text too short", map[int]option.Selection{2: {Text: "x"}}, 2, "at least 2 characters"},
		{"text too long", map[int]option.Selection{2: {Text: "abcdefg"}}, 2, "at most 5 characters"},
		{"number below min", map[int]option.Selection{3: {Number: ptr(0.5)}}, 3, "at least 1"},
		{"number above max", map[int]option.Selection{3: {Number: ptr(11)}}, 3, "at most 10"},
		{"too many files", map[int]option.Selection{4: {Files: 2}}, 4, "at most 1 files"},
		{"bad date", map[int]option.Selection{5: {Date: "15/03/2026"}}, 5, "YYYY-MM-DD"},
		{"date too early", map[int]option.Selection{5: {Date: "2025-12-31"}}, 5, "before 2026-01-01"},
		{"date too late", map[int]option.Selection{5: {Date: "2027-01-01"}}, 5, "after 2026-12-31"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateInput(options, &option.State{Selections: tc.sel}, nil)
			assert.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tc.optionID, result.Errors[0].OptionID)
			assert.Contains(t, result.Errors[0].Message, tc.message)
		})
	}

	t.Run("within bounds", func(t *testing.T) {
		state := &option.State{Selections: map[int]option.Selection{
			1: {ChoiceIDs: []string{"a", "c"}},
			2: {Text: "Anna"},
			3: {Number: ptr(10)},
			4: {Files: 1},
			5: {Date: "2026-03-15"},
		}}
		result := ValidateInput(options, state, nil)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})
}
