package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/formulary-dev/formulary/internal/engine"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/store"
	"github.com/formulary-dev/formulary/internal/style"
)

var (
	evalFormula  string
	evalVars     []string
	evalState    string
	evalQuantity float64
)

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval [product file]",
	Short: "Evaluate a formula or price a product configuration",
	Long: `Evaluate a standalone formula against variable bindings, or price a product document
for a set of customer selections.

Examples:
  formulary eval --formula "[length] * [width] * 0.05" --var length=120 --var width=80
  formulary eval --formula "[size.selected] = 'Large' ? 5 : 0" --var size.selected=Large
  formulary eval banner.product.yaml --state selections.json
  formulary eval banner.product.yaml --state selections.yaml --output json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCtx := newRunContext(cmd)
		if err := runEval(runCtx, args); err != nil {
			style.Error(runCtx.StdErr, err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFormula, "formula", "f", "", "formula to evaluate")
	evalCmd.Flags().StringArrayVar(&evalVars, "var", []string{}, "variable binding as name=value (repeatable)")
	evalCmd.Flags().StringVarP(&evalState, "state", "s", "", "customer selections (YAML or JSON)")
	evalCmd.Flags().Float64Var(&evalQuantity, "quantity", 0, "override the ordered quantity")
}

// FormulaEvaluation is the outcome of a standalone formula
type FormulaEvaluation struct {
	Formula  string         `json:"formula" yaml:"formula"`
	Bindings map[string]any `json:"bindings" yaml:"bindings"`
	Result   float64        `json:"result" yaml:"result"`
}

func runEval(runCtx RunContext, args []string) error {
	switch {
	case evalFormula != "" && len(args) > 0:
		return errors.New("use either --formula or a product file, not both")
	case evalFormula != "":
		bindings, err := parseBindings(evalVars)
		if err != nil {
			return err
		}
		res, err := evaluateFormula(evalFormula, bindings)
		if err != nil {
			return err
		}
		if !printStructured(runCtx, res) {
			runCtx.Printf("%s\n", formula.FormatNumber(res.Result))
		}
		return nil
	case len(args) == 1:
		calc, name, err := priceProduct(args[0], evalState, evalQuantity)
		if err != nil {
			return err
		}
		if !printStructured(runCtx, calc) {
			printCalculation(runCtx, name, calc)
		}
		return nil
	default:
		return errors.New("nothing to evaluate, pass --formula or a product file")
	}
}

func evaluateFormula(text string, bindings map[string]any) (*FormulaEvaluation, error) {
	program, err := formula.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}
	result, err := program.Evaluate(bindings)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	return &FormulaEvaluation{Formula: program.Main.Source, Bindings: bindings, Result: result}, nil
}

// parseBindings turns name=value pairs into bindings. Numbers and booleans are typed, everything
// else is a string. Brackets around the name are optional.
func parseBindings(pairs []string) (map[string]any, error) {
	bindings := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(name), "["), "]")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid binding %q, expected name=value", pair)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			bindings[name] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			bindings[name] = b
		} else {
			bindings[name] = value
		}
	}
	return bindings, nil
}

func priceProduct(file, stateFile string, quantity float64) (*engine.Calculation, string, error) {
	doc, err := store.LoadFile(file)
	if err != nil {
		return nil, "", err
	}

	state := &option.State{}
	if stateFile != "" {
		state, err = loadState(stateFile)
		if err != nil {
			return nil, "", err
		}
	}
	if quantity > 0 {
		state.Quantity = quantity
	}

	e := engine.Prepare(doc.Product)
	return e.Calculate(state), doc.Product.Name, nil
}

func loadState(path string) (*option.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}

	var state option.State
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &state)
	} else {
		err = yaml.Unmarshal(data, &state)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	return &state, nil
}

func printCalculation(w io.Writer, name string, calc *engine.Calculation) {
	fmt.Fprintf(w, "%s (product %d, quantity %s)\n\n", style.TitleStyle.Render(name), calc.ProductID, formula.FormatNumber(calc.Quantity))

	headers := []string{"Option", "Type", "Visible", "Amount"}
	rows := make([][]string, 0, len(calc.Options))
	for _, o := range calc.Options {
		visible := "yes"
		if !o.Visible {
			visible = "no"
		}
		amount := formula.FormatNumber(o.Amount)
		if o.Formula != nil && o.Formula.Error != "" {
			amount += " (" + string(o.Formula.ErrorKind) + ")"
		}
		rows = append(rows, []string{o.Name, string(o.Type), visible, amount})
	}
	printTable(w, headers, rows)

	fmt.Fprintf(w, "\nProduct price: %s\n", formula.FormatNumber(calc.ProductPrice))
	fmt.Fprintf(w, "Options:       %s\n", formula.FormatNumber(calc.OptionsTotal))
	fmt.Fprintf(w, "Total:         %s\n", formula.FormatNumber(calc.Total))

	if calc.Input != nil {
		for _, ve := range calc.Input.Errors {
			style.Warning(w, ve.Error())
		}
	}
	for _, d := range calc.Diagnostics {
		style.Warning(w, d.Message)
	}
}
