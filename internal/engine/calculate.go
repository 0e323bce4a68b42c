package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/formulary-dev/formulary/internal/binding"
	"github.com/formulary-dev/formulary/internal/conditional"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/pricing"
)

// Engine prices a single product. It is built once per product definition and is safe for
// concurrent use; every calculation works on its own immutable State.
type Engine struct {
	Product  *option.Product
	Compiled map[int]*Compiled

	options []*option.Option
	groupOf map[int]*option.Group

	// OnFailure is called for every formula that fails to evaluate. Failures never abort a
	// calculation; the formula contributes 0.
	OnFailure func(optionID int, err error)
}

// Prepare compiles every price formula of the product
func Prepare(p *option.Product) *Engine {
	e := &Engine{
		Product:  p,
		Compiled: map[int]*Compiled{},
		groupOf:  map[int]*option.Group{},
	}
	for _, g := range p.Groups {
		for _, o := range g.Options {
			e.options = append(e.options, o)
			e.groupOf[o.ID] = g
		}
		for _, c := range CompileGroup(g) {
			e.Compiled[c.OptionID] = c
		}
	}
	return e
}

// Options returns every option of the product in declaration order
func (e *Engine) Options() []*option.Option {
	return e.options
}

// ChoiceResult is the contribution of one selected choice
type ChoiceResult struct {
	ChoiceID  string           `json:"choice_id" yaml:"choice_id"`
	Label     string           `json:"label" yaml:"label"`
	PriceType option.PriceType `json:"price_type" yaml:"price_type"`
	Amount    float64          `json:"amount" yaml:"amount"`
}

// FormulaResult describes the evaluation of a price formula
type FormulaResult struct {
	Bindings  map[string]any    `json:"bindings" yaml:"bindings"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind formula.ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// OptionResult is the outcome for one option
type OptionResult struct {
	OptionID int            `json:"option_id" yaml:"option_id"`
	Name     string         `json:"name" yaml:"name"`
	Type     option.Type    `json:"type" yaml:"type"`
	Visible  bool           `json:"visible" yaml:"visible"`
	Amount   float64        `json:"amount" yaml:"amount"`
	Choices  []ChoiceResult `json:"choices,omitempty" yaml:"choices,omitempty"`
	Formula  *FormulaResult `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// Calculation is the priced configuration of a product
type Calculation struct {
	ProductID    int                      `json:"product_id" yaml:"product_id"`
	ProductPrice float64                  `json:"product_price" yaml:"product_price"`
	Quantity     float64                  `json:"quantity" yaml:"quantity"`
	Options      []OptionResult           `json:"options" yaml:"options"`
	OptionsTotal float64                  `json:"options_total" yaml:"options_total"`
	Total        float64                  `json:"total" yaml:"total"`
	Input        *InputValidationResult   `json:"input" yaml:"input"`
	Diagnostics  []conditional.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Duration     time.Duration            `json:"-" yaml:"-"`
}

// Option returns the result for an option
func (c *Calculation) Option(id int) *OptionResult {
	for i := range c.Options {
		if c.Options[i].OptionID == id {
			return &c.Options[i]
		}
	}
	return nil
}

// Calculate prices the product for one snapshot of selections. Options are visited in
// declaration order, so a formula sees the results of the formulas declared before it.
func (e *Engine) Calculate(state *option.State) *Calculation {
	start := time.Now()
	calc := &Calculation{
		ProductID:    e.Product.ID,
		ProductPrice: e.Product.Price,
		Quantity:     state.Qty(),
	}

	computed := map[int]float64{}
	visible := map[int]bool{}
	seen := map[string]bool{}

	for _, o := range e.options {
		ev := conditional.NewEvaluator(e.options, state, computed)
		res := OptionResult{
			OptionID: o.ID,
			Name:     o.Name,
			Type:     o.Type,
			Visible:  ev.IsVisible(o.ID),
		}
		visible[o.ID] = res.Visible

		if res.Visible {
			switch {
			case o.Type == option.TypePriceFormula:
				res.Formula = e.evaluateFormula(o, state, ev.IsVisible, computed)
				res.Amount = computed[o.ID]
			case HasInput(o, state):
				res.Choices, res.Amount = priceChoices(o, state, e.Product.Price)
			}
		}

		for _, d := range ev.Diagnostics() {
			key := fmt.Sprintf("%s/%d/%d", d.Kind, d.OptionID, d.TargetID)
			if !seen[key] {
				seen[key] = true
				calc.Diagnostics = append(calc.Diagnostics, d)
			}
		}
		calc.Options = append(calc.Options, res)
	}

	amounts := make([]float64, len(calc.Options))
	for i, r := range calc.Options {
		amounts[i] = r.Amount
	}
	calc.OptionsTotal = pricing.Total(amounts)
	calc.Total = pricing.Total([]float64{calc.ProductPrice, calc.OptionsTotal})
	calc.Input = ValidateInput(e.options, state, func(id int) bool { return visible[id] })
	calc.Duration = time.Since(start)
	return calc
}

func (e *Engine) evaluateFormula(o *option.Option, state *option.State, isVisible func(int) bool, computed map[int]float64) *FormulaResult {
	res := &FormulaResult{}
	c, ok := e.Compiled[o.ID]
	if !ok || !c.Valid() {
		err := fmt.Errorf("option %d has no valid formula", o.ID)
		if ok {
			err = c.Err
		}
		e.fail(o, err, res)
		computed[o.ID] = 0
		return res
	}

	res.Bindings = binding.Build(c.Manifest, binding.Input{
		Product:  e.Product,
		Options:  e.groupOf[o.ID].Options,
		State:    state,
		Visible:  isVisible,
		Computed: computed,
	})

	amount, err := c.Program.Evaluate(res.Bindings)
	if err != nil {
		e.fail(o, err, res)
		amount = 0
	}
	computed[o.ID] = amount
	return res
}

func (e *Engine) fail(o *option.Option, err error, res *FormulaResult) {
	res.Error = err.Error()
	res.ErrorKind = formula.KindOf(err)
	log.Warn().
		Int("product_id", e.Product.ID).
		Int("option_id", o.ID).
		Str("kind", string(res.ErrorKind)).
		Err(err).
		Msg("price formula failed, contributing 0")
	if e.OnFailure != nil {
		e.OnFailure(o.ID, err)
	}
}

// priceChoices prices the selected choices of a choice option, or the pricing choice of a
// free-input option (text, number, file upload, date).
func priceChoices(o *option.Option, state *option.State, productPrice float64) ([]ChoiceResult, float64) {
	sel, _ := state.Selection(o.ID)
	ctx := pricing.Context{
		ProductPrice: productPrice,
		Quantity:     state.Qty(),
		Characters:   pricing.CountCharacters(sel.Text),
		Files:        sel.Files,
	}

	choices := o.Choices
	if o.Type.HasChoices() {
		choices = state.SelectedChoices(o)
	}

	var results []ChoiceResult
	for _, c := range choices {
		results = append(results, ChoiceResult{
			ChoiceID:  c.ID,
			Label:     c.Label,
			PriceType: c.PriceType,
			Amount:    pricing.ChoiceAmount(c, ctx),
		})
	}
	return results, pricing.Sum(choices, ctx)
}
