package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formulary-dev/formulary/internal/style"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [catalog-name]",
	Short: "Initialize a new product catalog",
	Long: `Initialize a new product catalog with an example product document and configuration.

This command creates:
- Catalog directory
- Example product document with price formulas
- Example customer selections for 'formulary eval'
- Configuration file (.formulary/config.yaml)

Templates available:
- banner: Printed banner priced by area with a custom variable
- apparel: T-shirt with sizes, colours, a printed text and conditional gift wrap

Examples:
  formulary init my-shop                     # Create catalog with banner template
  formulary init --template apparel my-shop  # Create with apparel template
  formulary init --force my-shop             # Overwrite an existing directory`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := "formulary-catalog"
		if len(args) > 0 {
			name = args[0]
		}
		runCtx := newRunContext(cmd)
		if err := initializeCatalog(runCtx, name, templateName, force); err != nil {
			style.Error(runCtx.StdErr, err.Error())
			os.Exit(1)
		}
	},
}

var (
	templateName string
	force        bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&templateName, "template", "t", "banner", "catalog template (banner, apparel)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing catalog directory")
}

// CatalogTemplate represents a catalog template
type CatalogTemplate struct {
	Name        string
	Description string
	Files       map[string]string
}

var templates = map[string]CatalogTemplate{
	"banner": {
		Name:        "Banner",
		Description: "Printed banner priced by area with a custom variable",
		Files: map[string]string{
			"banner.product.yaml": bannerProduct,
			"selections.json":     bannerSelections,
		},
	},
	"apparel": {
		Name:        "Apparel",
		Description: "T-shirt with sizes, colours, a printed text and conditional gift wrap",
		Files: map[string]string{
			"tshirt.product.yaml": apparelProduct,
			"selections.json":     apparelSelections,
		},
	},
}

func initializeCatalog(runCtx RunContext, name, tmplName string, overwrite bool) error {
	if !isValidCatalogName(name) {
		return errors.New("catalog name must contain only letters, numbers, hyphens, and underscores")
	}

	tmpl, exists := templates[tmplName]
	if !exists {
		names := make([]string, 0, len(templates))
		for n := range templates {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown template %q, available: %s", tmplName, strings.Join(names, ", "))
	}

	if _, err := os.Stat(name); err == nil && !overwrite {
		return fmt.Errorf("directory %s already exists, use --force to overwrite", name)
	}

	style.Info(runCtx, fmt.Sprintf("Creating new product catalog: %s", name))
	style.Info(runCtx, fmt.Sprintf("Using template: %s", tmpl.Name))

	configDir := filepath.Join(name, ".formulary")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	var document string
	for filename, content := range tmpl.Files {
		if err := os.WriteFile(filepath.Join(name, filename), []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", filename, err)
		}
		if strings.HasSuffix(filename, ".product.yaml") {
			document = filename
		}
	}

	style.Success(runCtx, fmt.Sprintf("Catalog %s created successfully!", name))
	runCtx.Printf("\nNext steps:\n")
	runCtx.Printf("  cd %s\n", name)
	runCtx.Printf("  formulary validate %s\n", document)
	runCtx.Printf("  formulary eval %s --state selections.json\n", document)
	runCtx.Printf("  formulary serve %s\n", document)
	return nil
}

func isValidCatalogName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_') {
			return false
		}
	}

	return true
}

const defaultConfig = `# Formulary configuration
log-level: warn
output: text

# How the store keeps and shows prices. product_price bindings of recomputed
# formulas are converted from the displayed basis to the stored one.
tax:
  prices_include_tax: false
  display_including_tax: false
  rate: 0
`

const bannerProduct = `version: "1.0"
product:
  id: 1
  name: Banner
  price: 25
  groups:
    - id: 1
      name: Size and finish
      options:
        - id: 1
          name: Length
          type: number
          required: true
          settings:
            min: 10
            max: 500
        - id: 2
          name: Width
          type: number
          required: true
          settings:
            min: 10
            max: 200
        - id: 3
          name: Finish
          type: radio
          choices:
            - id: gloss
              label: Gloss
              price_type: flat_fee
              pricing: 5
              selected: true
            - id: matte
              label: Matte
              price_type: percentage_inc
              pricing: 10
        - id: 4
          name: Print cost
          type: price_formula
          settings:
            formula:
              expression: "[area] * 0.002 + [finish.price]"
            custom_variables:
              - name: area
                formula: "[length] * [width]"
`

const bannerSelections = `{
  "quantity": 1,
  "selections": {
    "1": {"number": 120},
    "2": {"number": 80},
    "3": {"choice_ids": ["matte"]}
  }
}
`

const apparelProduct = `version: "1.0"
product:
  id: 2
  name: T-shirt
  price: 18
  groups:
    - id: 1
      name: Shirt
      options:
        - id: 1
          name: Size
          type: radio
          required: true
          choices:
            - id: s
              label: Small
            - id: m
              label: Medium
              selected: true
            - id: xl
              label: XL
              price_type: flat_fee
              pricing: 3
        - id: 2
          name: Colour
          type: color_swatches
          choices:
            - id: white
              label: White
              selected: true
            - id: black
              label: Black
              price_type: flat_fee
              pricing: 2
        - id: 3
          name: Print text
          type: text
          settings:
            max_length: 30
          choices:
            - id: print
              label: Print
              price_type: char_count
              pricing: 0.2
        - id: 4
          name: Gift wrap
          type: checkbox
          choices:
            - id: wrap
              label: Wrap
              price_type: flat_fee
              pricing: 4
          conditional_logic:
            visibility: show
            relation: and
            conditions:
              - option_id: 3
                operator: not-empty
        - id: 5
          name: Bulk discount
          type: price_formula
          settings:
            formula:
              expression: "[quantity] >= 10 ? -[product_price] * 0.1 : 0"
`

const apparelSelections = `{
  "quantity": 12,
  "selections": {
    "1": {"choice_ids": ["xl"]},
    "3": {"text": "Team Formulary"},
    "4": {"choice_ids": ["wrap"]}
  }
}
`
