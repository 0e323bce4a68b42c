package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/engine"
)

func TestParseBindings(t *testing.T) {
	bindings, err := parseBindings([]string{"length=120", "[width]=80.5", "size.selected=Extra Large", "gift=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"length":        120.0,
		"width":         80.5,
		"size.selected": "Extra Large",
		"gift":          true,
	}, bindings)

	_, err = parseBindings([]string{"length"})
	assert.ErrorContains(t, err, "expected name=value")

	_, err = parseBindings([]string{"=4"})
	assert.Error(t, err)
}

func TestEvaluateFormula(t *testing.T) {
	testCases := []struct {
		name     string
		formula  string
		bindings map[string]any
		expected float64
		err      string
	}{
		{name: "Area", formula: "[length] * [width] * 0.05", bindings: map[string]any{"length": 120.0, "width": 80.0}, expected: 480},
		{name: "Selected label", formula: "[size.selected] = 'Large' ? 5 : 0", bindings: map[string]any{"size.selected": "Large"}, expected: 5},
		{name: "Missing binding is zero", formula: "[length] + 2", expected: 2},
		{name: "Syntax error", formula: "[length] * * 2", err: "invalid formula"},
		{name: "Division by zero", formula: "10 / [width]", bindings: map[string]any{"width": 0.0}, err: "evaluation failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := evaluateFormula(tc.formula, tc.bindings)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, res.Result, 1e-9)
		})
	}
}

func TestPriceProduct(t *testing.T) {
	testCases := []struct {
		name         string
		state        string
		optionsTotal float64
		total        float64
		finish       float64
		engraving    bool
	}{
		{name: "Gloss from JSON", state: "testdata/eval/gloss.json", optionsTotal: 94.5, total: 194.5, finish: 5, engraving: true},
		{name: "Matte from YAML", state: "testdata/eval/matte.yaml", optionsTotal: 102, total: 202, finish: 10, engraving: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calc, name, err := priceProduct("testdata/eval/banner.product.yaml", tc.state, 0)
			require.NoError(t, err)
			assert.Equal(t, "Banner", name)
			assert.Equal(t, 2.0, calc.Quantity)
			assert.InDelta(t, tc.optionsTotal, calc.OptionsTotal, 1e-9)
			assert.InDelta(t, tc.total, calc.Total, 1e-9)
			assert.InDelta(t, tc.finish, calc.Option(3).Amount, 1e-9)
			assert.Equal(t, tc.engraving, calc.Option(6).Visible)
		})
	}

	t.Run("Quantity override", func(t *testing.T) {
		calc, _, err := priceProduct("testdata/eval/banner.product.yaml", "testdata/eval/gloss.json", 5)
		require.NoError(t, err)
		assert.Equal(t, 5.0, calc.Quantity)
	})

	t.Run("Missing state file", func(t *testing.T) {
		_, _, err := priceProduct("testdata/eval/banner.product.yaml", "testdata/eval/missing.json", 0)
		assert.ErrorContains(t, err, "failed to read state")
	})
}

func TestRunEval(t *testing.T) {
	t.Cleanup(func() {
		evalFormula, evalVars, evalState, evalQuantity = "", nil, "", 0
	})

	t.Run("Formula text", func(t *testing.T) {
		evalFormula, evalVars = "[length] * [width]", []string{"length=12", "width=4"}
		runCtx, stdout, _ := newTestRunContext()
		require.NoError(t, runEval(runCtx, nil))
		assert.Equal(t, "48\n", stdout.String())
	})

	t.Run("Product JSON", func(t *testing.T) {
		setViper(t, "output", "json")
		evalFormula, evalVars, evalState = "", nil, "testdata/eval/gloss.json"
		runCtx, stdout, _ := newTestRunContext()
		require.NoError(t, runEval(runCtx, []string{"testdata/eval/banner.product.yaml"}))

		var calc engine.Calculation
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &calc))
		assert.Equal(t, 7, calc.ProductID)
		assert.InDelta(t, 194.5, calc.Total, 1e-9)
	})

	t.Run("Product text", func(t *testing.T) {
		evalFormula, evalState = "", "testdata/eval/matte.yaml"
		runCtx, stdout, _ := newTestRunContext()
		require.NoError(t, runEval(runCtx, []string{"testdata/eval/banner.product.yaml"}))

		out := re.ReplaceAllString(stdout.String(), "")
		assert.Contains(t, out, "Banner (product 7, quantity 2)")
		assert.Contains(t, out, "Total:         202")
	})

	t.Run("Both modes", func(t *testing.T) {
		evalFormula = "1 + 1"
		runCtx, _, _ := newTestRunContext()
		assert.ErrorContains(t, runEval(runCtx, []string{"testdata/eval/banner.product.yaml"}), "not both")
	})

	t.Run("Nothing to evaluate", func(t *testing.T) {
		evalFormula = ""
		runCtx, _, _ := newTestRunContext()
		assert.ErrorContains(t, runEval(runCtx, nil), "nothing to evaluate")
	})
}
