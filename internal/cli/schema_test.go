package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/store"
)

func TestBuildSchemaOutput(t *testing.T) {
	output, err := buildSchemaOutput()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(output.Schema, &schema))
	assert.Equal(t, store.SchemaID, schema["$id"])

	assert.NotEmpty(t, output.Expressions)
	assert.NotEmpty(t, output.Functions)
	assert.Contains(t, output.ProductProperties, "product_price")

	byType := map[option.Type]OptionTypeVariables{}
	for _, v := range output.OptionTypes {
		byType[v.Type] = v
	}
	assert.NotContains(t, byType, option.TypeHTML)

	radio := byType[option.TypeRadio]
	assert.True(t, radio.Bare)
	assert.Contains(t, radio.Properties, "selected")
	assert.Equal(t, []string{"checked", "value", "price"}, radio.ChoiceProperties)

	text := byType[option.TypeText]
	assert.Contains(t, text.Properties, "characters")
	assert.Empty(t, text.ChoiceProperties)
}

func TestSchemaCommand(t *testing.T) {
	output, err := executeCommand(rootCmd, "schema")
	require.NoError(t, err)

	var decoded SchemaOutput
	require.NoError(t, json.Unmarshal([]byte(output), &decoded))
	assert.NotEmpty(t, decoded.Functions)
}
