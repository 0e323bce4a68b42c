package engine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/pricing"
	"github.com/formulary-dev/formulary/internal/resolver"
)

// FormulaBindings are the bindings a storefront captured for one formula when the customer
// added the product to the cart
type FormulaBindings struct {
	OptionID  int            `json:"option_id" yaml:"option_id"`
	Variables map[string]any `json:"variables" yaml:"variables"`
}

// RecomputeRequest asks the server to re-evaluate formulas from captured bindings
type RecomputeRequest struct {
	ProductID int               `json:"product_id" yaml:"product_id"`
	Formulas  []FormulaBindings `json:"formulas" yaml:"formulas"`
}

// RecomputeResult is the authoritative amount for one formula
type RecomputeResult struct {
	OptionID int     `json:"option_id" yaml:"option_id"`
	Amount   float64 `json:"amount" yaml:"amount"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Recompute re-evaluates the stored formulas against client-supplied bindings. The formula
// text always comes from the product definition, never from the client. Product prices are
// converted from the displayed to the stored tax basis first. Results keep request order; a
// formula that cannot be evaluated contributes 0 and reports its error.
func (e *Engine) Recompute(ctx context.Context, req RecomputeRequest, tax pricing.TaxSettings) ([]RecomputeResult, error) {
	if req.ProductID != e.Product.ID {
		return nil, fmt.Errorf("request is for product %d, engine prices product %d", req.ProductID, e.Product.ID)
	}

	results := make([]RecomputeResult, len(req.Formulas))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, fb := range req.Formulas {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = e.recomputeOne(fb, tax)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) recomputeOne(fb FormulaBindings, tax pricing.TaxSettings) RecomputeResult {
	res := RecomputeResult{OptionID: fb.OptionID}

	c, ok := e.Compiled[fb.OptionID]
	if !ok {
		res.Error = fmt.Sprintf("option %d is not a price formula of product %d", fb.OptionID, e.Product.ID)
		return res
	}
	if !c.Valid() {
		res.Error = c.Err.Error()
		return res
	}

	amount, err := c.Program.Evaluate(adjustBindings(c.Manifest, fb.Variables, tax))
	if err != nil {
		log.Warn().
			Int("product_id", e.Product.ID).
			Int("option_id", fb.OptionID).
			Err(err).
			Msg("recompute failed, contributing 0")
		if e.OnFailure != nil {
			e.OnFailure(fb.OptionID, err)
		}
		res.Error = err.Error()
		return res
	}
	res.Amount = amount
	return res
}

// adjustBindings copies the bindings, converting product price references to the stored tax
// basis. Only references in the manifest are kept.
func adjustBindings(manifest []option.Reference, vars map[string]any, tax pricing.TaxSettings) map[string]any {
	out := make(map[string]any, len(manifest))
	for _, ref := range manifest {
		v, ok := vars[ref.Raw]
		if !ok {
			continue
		}
		if ref.Kind == option.KindProduct && ref.Name == resolver.ProductPrice && tax.NeedsAdjustment() {
			v = tax.AdjustProductPrice(formula.ToNumber(formula.GoToValue(v)))
		}
		out[ref.Raw] = v
	}
	return out
}
