package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulary-dev/formulary/internal/pricing"
)

// cartRequest captures the bindings of every formula the way a storefront does when the
// product is added to the cart, sent over the wire as JSON.
func cartRequest(t *testing.T, calc *Calculation) RecomputeRequest {
	t.Helper()

	req := RecomputeRequest{ProductID: calc.ProductID}
	for _, r := range calc.Options {
		if r.Formula != nil && r.Visible {
			req.Formulas = append(req.Formulas, FormulaBindings{OptionID: r.OptionID, Variables: r.Formula.Bindings})
		}
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	var decoded RecomputeRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestRecompute_MatchesCalculation(t *testing.T) {
	e := Prepare(bannerProduct())

	for _, finish := range []string{"gloss", "matte"} {
		t.Run(finish, func(t *testing.T) {
			calc := e.Calculate(bannerState(finish))

			results, err := e.Recompute(context.Background(), cartRequest(t, calc), pricing.TaxSettings{})
			require.NoError(t, err)
			require.Len(t, results, 3)

			for _, r := range results {
				assert.Equal(t, calc.Option(r.OptionID).Amount, r.Amount, "option %d", r.OptionID)
			}
		})
	}
}

func TestRecompute_KeepsRequestOrder(t *testing.T) {
	e := Prepare(bannerProduct())
	req := RecomputeRequest{ProductID: 7}
	for i := 0; i < 50; i++ {
		req.Formulas = append(req.Formulas, FormulaBindings{OptionID: 4, Variables: map[string]any{"length": float64(i), "width": 2.0}})
	}

	results, err := e.Recompute(context.Background(), req, pricing.TaxSettings{})
	require.NoError(t, err)
	require.Len(t, results, 50)
	for i, r := range results {
		assert.Equal(t, float64(i*2), r.Amount)
	}
}

func TestRecompute_Errors(t *testing.T) {
	e := Prepare(bannerProduct())

	_, err := e.Recompute(context.Background(), RecomputeRequest{ProductID: 8}, pricing.TaxSettings{})
	assert.Error(t, err)

	results, err := e.Recompute(context.Background(), RecomputeRequest{ProductID: 7, Formulas: []FormulaBindings{
		{OptionID: 3},
		{OptionID: 8},
		{OptionID: 4, Variables: map[string]any{"length": "abc", "width": 2}},
		{OptionID: 4, Variables: map[string]any{"length": 3, "width": 2}},
	}}, pricing.TaxSettings{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Contains(t, results[0].Error, "not a price formula")
	assert.Contains(t, results[1].Error, "missing")
	assert.Zero(t, results[1].Amount)
	assert.Equal(t, 6.0, results[3].Amount)
	assert.Empty(t, results[3].Error)
}

func TestRecompute_IgnoresUnknownBindings(t *testing.T) {
	e := Prepare(bannerProduct())

	results, err := e.Recompute(context.Background(), RecomputeRequest{ProductID: 7, Formulas: []FormulaBindings{
		{OptionID: 4, Variables: map[string]any{"length": 3, "width": 2, "formula": "1000"}},
	}}, pricing.TaxSettings{})
	require.NoError(t, err)
	assert.Equal(t, 6.0, results[0].Amount)
}

func TestRecompute_TaxAdjustsProductPrice(t *testing.T) {
	e := Prepare(bannerProduct())
	req := RecomputeRequest{ProductID: 7, Formulas: []FormulaBindings{
		{OptionID: 5, Variables: map[string]any{"area": 0, "finish.price": 0, "product_price": 121}},
	}}

	results, err := e.Recompute(context.Background(), req, pricing.TaxSettings{DisplayIncludingTax: true, Rate: 21})
	require.NoError(t, err)
	assert.Equal(t, 10.0, results[0].Amount)

	results, err = e.Recompute(context.Background(), req, pricing.TaxSettings{})
	require.NoError(t, err)
	assert.InDelta(t, 12.1, results[0].Amount, 1e-9)
}

func TestRecompute_Cancelled(t *testing.T) {
	e := Prepare(bannerProduct())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recompute(ctx, RecomputeRequest{ProductID: 7, Formulas: []FormulaBindings{{OptionID: 4}}}, pricing.TaxSettings{})
	assert.ErrorIs(t, err, context.Canceled)
}
