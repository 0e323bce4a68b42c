package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/formulary-dev/formulary/internal/engine"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/store"
	"github.com/formulary-dev/formulary/internal/style"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate product documents and their price formulas",
	Long: `Validate product documents for schema compliance and formula correctness.

This command checks:
- YAML/JSON syntax validity
- JSON schema compliance and the document version
- Unique option and choice ids
- Every price formula: syntax, variable references, custom variable cycles
- Conditional logic rules pointing at deleted options

Examples:
  formulary validate banner.product.yaml           # Validate single file
  formulary validate *.product.yaml                # Validate multiple files
  formulary validate --recursive ./products        # Validate directory recursively
  formulary validate --output json banner.product.yaml  # JSON output for CI/CD`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := validateProducts(newRunContext(cmd), args); err != nil {
			os.Exit(1)
		}
	},
}

var (
	recursive bool
	showAll   bool
)

var errValidationFailed = errors.New("validation failed")

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recursively validate files in directories")
	validateCmd.Flags().BoolVar(&showAll, "show-all", false, "show all validation results, including successful ones")
}

// Issue is one problem found in a product document
type Issue struct {
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	OptionID int    `json:"option_id,omitempty" yaml:"option_id,omitempty"`
	Option   string `json:"option,omitempty" yaml:"option,omitempty"`
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Formula  string `json:"formula,omitempty" yaml:"formula,omitempty"`

	// offset and length locate the problem inside Formula, offset is -1 when unknown
	offset int
	length int
}

// ValidationResult represents the result of validating a product document
type ValidationResult struct {
	File      string        `json:"file" yaml:"file"`
	ProductID int           `json:"product_id,omitempty" yaml:"product_id,omitempty"`
	Valid     bool          `json:"valid" yaml:"valid"`
	Duration  time.Duration `json:"duration_ms" yaml:"duration_ms"`
	Errors    []Issue       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings  []Issue       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ValidationSummary represents the summary of all validation results
type ValidationSummary struct {
	Total    int                `json:"total" yaml:"total"`
	Valid    int                `json:"valid" yaml:"valid"`
	Invalid  int                `json:"invalid" yaml:"invalid"`
	Duration time.Duration      `json:"total_duration_ms" yaml:"total_duration_ms"`
	Results  []ValidationResult `json:"results" yaml:"results"`
}

func validateProducts(runCtx RunContext, args []string) error {
	start := time.Now()

	files, err := collectFiles(args, recursive)
	if err != nil {
		style.Error(runCtx.StdErr, fmt.Sprintf("Failed to collect files: %v", err))
		return err
	}

	if len(files) == 0 {
		style.Warning(runCtx, "No product documents found to validate")
		return nil
	}

	text := viper.GetString("output") == "text"
	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		result := validateSingleFile(file)
		results = append(results, result)

		if text && !viper.GetBool("quiet") {
			printValidationResult(runCtx, result)
		}
	}

	summary := ValidationSummary{
		Total:    len(results),
		Duration: time.Since(start),
		Results:  results,
	}
	for _, result := range results {
		if result.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}

	if !printStructured(runCtx, summary) {
		printValidationSummary(runCtx, summary)
	}

	if summary.Invalid > 0 {
		return errValidationFailed
	}
	return nil
}

func validateSingleFile(filename string) ValidationResult {
	start := time.Now()
	result := ValidationResult{File: filename, Valid: true}

	doc, err := store.LoadFile(filename)
	if err != nil {
		result.Valid = false
		result.Errors = loadIssues(err)
		result.Duration = time.Since(start)
		return result
	}
	result.ProductID = doc.Product.ID

	e := engine.Prepare(doc.Product)
	for _, o := range e.Options() {
		c, ok := e.Compiled[o.ID]
		if !ok {
			continue
		}
		if !c.Valid() {
			result.Valid = false
			result.Errors = append(result.Errors, formulaIssue(o, c))
			continue
		}
		if c.Repaired {
			result.Warnings = append(result.Warnings, Issue{
				OptionID: o.ID,
				Option:   o.Name,
				Kind:     "StaleReference",
				Message:  "formula references renamed options or choices, run 'formulary repair' to update it",
				Formula:  c.Formula,
				offset:   -1,
			})
		}
	}

	// an empty state walks every rule once and surfaces stale targets
	calc := e.Calculate(&option.State{})
	for _, d := range calc.Diagnostics {
		name := ""
		if o := option.Find(e.Options(), d.OptionID); o != nil {
			name = o.Name
		}
		result.Warnings = append(result.Warnings, Issue{
			OptionID: d.OptionID,
			Option:   name,
			Kind:     string(d.Kind),
			Message:  d.Message,
			offset:   -1,
		})
	}
	result.Duration = time.Since(start)

	log.Debug().
		Str("file", filename).
		Bool("valid", result.Valid).
		Dur("duration", result.Duration).
		Msg("Validated product document")

	return result
}

func loadIssues(err error) []Issue {
	var schemaErr *store.SchemaError
	if errors.As(err, &schemaErr) {
		issues := make([]Issue, 0, len(schemaErr.Result.Errors))
		for _, ve := range schemaErr.Result.Errors {
			issues = append(issues, Issue{Path: ve.Path, Kind: "SchemaError", Message: ve.Message, offset: -1})
		}
		return issues
	}
	return []Issue{{Message: err.Error(), offset: -1}}
}

func formulaIssue(o *option.Option, c *engine.Compiled) Issue {
	issue := Issue{
		OptionID: o.ID,
		Option:   o.Name,
		Kind:     string(formula.KindOf(c.Err)),
		Message:  c.ValidationError,
		Formula:  c.Formula,
	}
	issue.offset, issue.length = locate(c)
	return issue
}

// locate finds the span of the failure inside the main formula. Failures raised by a custom
// variable carry offsets into that variable's text, those are not located.
func locate(c *engine.Compiled) (int, int) {
	var fe *formula.Error
	if !errors.As(c.Err, &fe) || fe.Offset < 0 || fe.Offset >= len(c.Formula) {
		return -1, 0
	}
	if fe.Variable != "" {
		bracket := "[" + fe.Variable + "]"
		if strings.HasPrefix(c.Formula[fe.Offset:], bracket) {
			return fe.Offset, len(bracket)
		}
		return -1, 0
	}
	if _, err := formula.Parse(c.Formula); err != nil {
		return fe.Offset, 1
	}
	return -1, 0
}

func collectFiles(args []string, recursive bool) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			if !recursive {
				return nil, fmt.Errorf("%s is a directory, use --recursive to validate directories", arg)
			}
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && store.IsDocument(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("error walking directory %s: %w", arg, err)
			}
		} else if store.IsDocument(arg) {
			files = append(files, arg)
		} else {
			return nil, fmt.Errorf("%s is not a product document (%s)", arg, strings.Join(store.Extensions, ", "))
		}
	}

	return files, nil
}

func printValidationResult(w io.Writer, result ValidationResult) {
	switch {
	case !result.Valid:
		style.Error(w, fmt.Sprintf("%s (%v)", result.File, result.Duration))
	case showAll || len(result.Warnings) > 0:
		style.Success(w, fmt.Sprintf("%s (%v)", result.File, result.Duration))
	}

	for _, issue := range result.Errors {
		printIssue(w, "error", issue)
	}
	for _, issue := range result.Warnings {
		printIssue(w, "warning", issue)
	}
}

func printIssue(w io.Writer, severity string, issue Issue) {
	var where string
	switch {
	case issue.Option != "":
		where = fmt.Sprintf("%s (option %d): ", issue.Option, issue.OptionID)
	case issue.Path != "":
		where = issue.Path + ": "
	}
	fmt.Fprintf(w, "  %s %s%s\n", style.GetSeverityIcon(severity), where, style.GetSeverityStyle(severity).Render(issue.Message))

	if issue.offset < 0 || issue.Formula == "" {
		return
	}
	fmt.Fprintln(w, style.RenderCodeLine(1, issue.Formula, true))
	fmt.Fprintln(w, style.RenderHighlightIndicator(issue.offset+1, issue.length))
}

func printValidationSummary(w io.Writer, summary ValidationSummary) {
	if viper.GetBool("quiet") {
		return
	}

	fmt.Fprintf(w, "\n")
	if summary.Invalid == 0 {
		style.Success(w, fmt.Sprintf("All %d product document(s) are valid (%v)", summary.Total, summary.Duration))
	} else {
		style.Error(w, fmt.Sprintf("%d of %d product document(s) failed validation (%v)", summary.Invalid, summary.Total, summary.Duration))
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(w, "\nDetailed results:\n")
		headers := []string{"File", "Product", "Status", "Warnings", "Duration"}
		rows := make([][]string, len(summary.Results))
		for i, result := range summary.Results {
			status := "Valid"
			if !result.Valid {
				status = "Invalid"
			}
			rows[i] = []string{
				result.File,
				fmt.Sprintf("%d", result.ProductID),
				status,
				fmt.Sprintf("%d", len(result.Warnings)),
				result.Duration.String(),
			}
		}
		printTable(w, headers, rows)
	}
}
