package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/formulary-dev/formulary/internal/engine"
	"github.com/formulary-dev/formulary/internal/repair"
	"github.com/formulary-dev/formulary/internal/store"
	"github.com/formulary-dev/formulary/internal/style"
)

var writeRepairs bool

// repairCmd represents the repair command
var repairCmd = &cobra.Command{
	Use:   "repair [files...]",
	Short: "Rewrite formulas that reference renamed options",
	Long: `Rewrite price formulas whose bracket references went stale after an option or choice
was renamed. References are matched through the ids recorded when the formula was saved.

Without --write the changes are only shown.

Examples:
  formulary repair banner.product.yaml            # Show what would change
  formulary repair --write banner.product.yaml    # Save the repaired document
  formulary repair -r --write ./products          # Repair a whole directory`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := repairProducts(newRunContext(cmd), args); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)

	repairCmd.Flags().BoolVarP(&writeRepairs, "write", "w", false, "write repaired documents back to disk")
	repairCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recursively repair files in directories")
}

// FormulaRepair describes the change made to one price formula
type FormulaRepair struct {
	OptionID int              `json:"option_id" yaml:"option_id"`
	Option   string           `json:"option" yaml:"option"`
	Before   string           `json:"before" yaml:"before"`
	After    string           `json:"after" yaml:"after"`
	Rewrites []repair.Rewrite `json:"rewrites,omitempty" yaml:"rewrites,omitempty"`
}

// RepairResult is the outcome for one product document
type RepairResult struct {
	File     string          `json:"file" yaml:"file"`
	Formulas []FormulaRepair `json:"formulas,omitempty" yaml:"formulas,omitempty"`
	Written  bool            `json:"written" yaml:"written"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func repairProducts(runCtx RunContext, args []string) error {
	files, err := collectFiles(args, recursive)
	if err != nil {
		style.Error(runCtx.StdErr, fmt.Sprintf("Failed to collect files: %v", err))
		return err
	}

	var (
		results []RepairResult
		failed  int
	)
	for _, file := range files {
		result := repairFile(file, writeRepairs)
		if result.Error != "" {
			failed++
		}
		results = append(results, result)
	}

	if !printStructured(runCtx, results) {
		for _, result := range results {
			printRepairResult(runCtx, result)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) could not be repaired", failed)
	}
	return nil
}

// repairFile compiles every formula of a document and, when write is set, saves the formulas
// whose text changed together with their refreshed manifests.
func repairFile(file string, write bool) RepairResult {
	result := RepairResult{File: file}

	doc, err := store.LoadFile(file)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	e := engine.Prepare(doc.Product)
	for _, o := range e.Options() {
		c, ok := e.Compiled[o.ID]
		if !ok || !c.Changed {
			continue
		}
		result.Formulas = append(result.Formulas, FormulaRepair{
			OptionID: o.ID,
			Option:   o.Name,
			Before:   o.FormulaSettings().Formula.Expression,
			After:    c.Formula,
			Rewrites: c.Rewrites,
		})
		c.Apply(o)
	}

	if !write || len(result.Formulas) == 0 {
		return result
	}
	if err := store.SaveFile(doc, file); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Written = true

	log.Info().
		Str("file", file).
		Int("formulas", len(result.Formulas)).
		Msg("Repaired product document")

	return result
}

func printRepairResult(w io.Writer, result RepairResult) {
	if result.Error != "" {
		style.Error(w, result.Error)
		return
	}
	if len(result.Formulas) == 0 {
		if viper.GetBool("verbose") {
			style.Success(w, fmt.Sprintf("%s is up to date", result.File))
		}
		return
	}

	if result.Written {
		style.Success(w, fmt.Sprintf("%s: repaired %d formula(s)", result.File, len(result.Formulas)))
	} else {
		style.Info(w, fmt.Sprintf("%s: %d formula(s) need repair", result.File, len(result.Formulas)))
	}
	for _, f := range result.Formulas {
		fmt.Fprintf(w, "  %s (option %d)\n", f.Option, f.OptionID)
		fmt.Fprintf(w, "    %s\n", renderDiff(f.Before, f.After))
		for _, rw := range f.Rewrites {
			fmt.Fprintf(w, "    %s [%s] -> [%s]\n", style.MutedStyle.Render("rewrote"), rw.From, rw.To)
		}
	}
	if !result.Written && !viper.GetBool("quiet") {
		fmt.Fprintf(w, "  %s\n", style.MutedStyle.Render("run with --write to save"))
	}
}

// renderDiff renders a word-level diff, deletions as [-text-] and insertions as {+text+}
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString(style.DeleteStyle.Render("[-" + d.Text + "-]"))
		case diffmatchpatch.DiffInsert:
			b.WriteString(style.InsertStyle.Render("{+" + d.Text + "+}"))
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
