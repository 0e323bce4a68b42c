package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/store"
)

const repairedPoster = "[length_cm] * [width] + [size.choices.extra_large.price]"

// copyFixture copies a testdata document into a temp dir so it can be rewritten
func copyFixture(t *testing.T, src string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), filepath.Base(src))
	require.NoError(t, os.WriteFile(dst, data, 0644))
	return dst
}

func TestRepairFile_DryRun(t *testing.T) {
	file := copyFixture(t, "testdata/repair/poster.product.json")
	before, err := os.ReadFile(file)
	require.NoError(t, err)

	result := repairFile(file, false)
	require.Empty(t, result.Error)
	assert.False(t, result.Written)
	require.Len(t, result.Formulas, 1)

	f := result.Formulas[0]
	assert.Equal(t, 4, f.OptionID)
	assert.Equal(t, "[length] * [width] + [size.choices.large.price]", f.Before)
	assert.Equal(t, repairedPoster, f.After)
	assert.Len(t, f.Rewrites, 2)

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "dry run must not touch the file")
}

func TestRepairFile_Write(t *testing.T) {
	file := copyFixture(t, "testdata/repair/poster.product.json")

	result := repairFile(file, true)
	require.Empty(t, result.Error)
	assert.True(t, result.Written)

	doc, err := store.LoadFile(file)
	require.NoError(t, err)
	fs := doc.Product.Groups[0].Options[3].FormulaSettings()
	require.NotNil(t, fs)
	assert.Equal(t, repairedPoster, fs.Formula.Expression)

	raws := make([]string, len(fs.Formula.Variables))
	for i, ref := range fs.Formula.Variables {
		raws[i] = ref.Raw
	}
	assert.Equal(t, []string{"length_cm", "width", "size.choices.extra_large.price"}, raws)

	again := repairFile(file, true)
	require.Empty(t, again.Error)
	assert.Empty(t, again.Formulas, "repair must be idempotent")
	assert.False(t, again.Written)
}

func TestRepairProducts_Output(t *testing.T) {
	file := copyFixture(t, "testdata/repair/poster.product.json")

	t.Run("Text", func(t *testing.T) {
		runCtx, stdout, _ := newTestRunContext()
		require.NoError(t, repairProducts(runCtx, []string{file}))

		out := re.ReplaceAllString(stdout.String(), "")
		assert.Contains(t, out, "1 formula(s) need repair")
		assert.Contains(t, out, "Price (option 4)")
		assert.Contains(t, out, "rewrote [length] -> [length_cm]")
		assert.Contains(t, out, "run with --write to save")
	})

	t.Run("JSON", func(t *testing.T) {
		setViper(t, "output", "json")
		runCtx, stdout, _ := newTestRunContext()
		require.NoError(t, repairProducts(runCtx, []string{file}))

		var results []RepairResult
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
		require.Len(t, results, 1)
		require.Len(t, results[0].Formulas, 1)
		assert.Equal(t, repairedPoster, results[0].Formulas[0].After)
	})

	t.Run("Unreadable document", func(t *testing.T) {
		runCtx, _, _ := newTestRunContext()
		err := repairProducts(runCtx, []string{"testdata/validate/valid/missing.product.yaml"})
		assert.Error(t, err)
	})
}

func TestRenderDiff(t *testing.T) {
	got := re.ReplaceAllString(renderDiff("[a] + 1", "[b] + 1"), "")
	assert.Equal(t, "[[-a-]{+b+}] + 1", got)

	assert.Equal(t, "[a] + 1", re.ReplaceAllString(renderDiff("[a] + 1", "[a] + 1"), ""))
}
