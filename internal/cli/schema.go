package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/resolver"
	"github.com/formulary-dev/formulary/internal/store"
)

// SchemaOutput represents the combined output structure
type SchemaOutput struct {
	Schema            json.RawMessage         `json:"schema"`
	Expressions       []formula.ExpressionDef `json:"expressions"`
	Functions         []formula.FunctionDef   `json:"functions"`
	OptionTypes       []OptionTypeVariables   `json:"option_types"`
	ProductProperties []string                `json:"product_properties"`
}

// OptionTypeVariables lists how formulas may reference options of one type
type OptionTypeVariables struct {
	Type             option.Type `json:"type"`
	Bare             bool        `json:"bare"`
	Properties       []string    `json:"properties,omitempty"`
	ChoiceProperties []string    `json:"choice_properties,omitempty"`
}

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Output JSON schema and formula definitions",
	Long:   `Output the product document JSON schema, formula expression definitions, the function library and the variables each option type exposes.`,
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		output, err := buildSchemaOutput()
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error generating schema: %v\n", err)
			os.Exit(1)
		}

		outputBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error marshaling output: %v\n", err)
			os.Exit(1)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(outputBytes))
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func buildSchemaOutput() (*SchemaOutput, error) {
	schemaBytes, err := store.Schema()
	if err != nil {
		return nil, err
	}

	var types []OptionTypeVariables
	for _, t := range option.Types {
		if !catalog.Addressable(t) {
			continue
		}
		v := OptionTypeVariables{
			Type:       t,
			Bare:       catalog.BareAllowed(t),
			Properties: catalog.PropertiesFor(t),
		}
		if t.HasChoices() {
			v.ChoiceProperties = catalog.ChoiceProperties
		}
		types = append(types, v)
	}

	return &SchemaOutput{
		Schema:            json.RawMessage(schemaBytes),
		Expressions:       formula.ExpressionDefs,
		Functions:         formula.FunctionDefs,
		OptionTypes:       types,
		ProductProperties: resolver.ProductProperties,
	}, nil
}
