package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
	"github.com/formulary-dev/formulary/internal/repair"
	"github.com/formulary-dev/formulary/internal/resolver"
)

// Compiled is the design-time result for one price-formula option: the repaired and
// normalized formula text, its manifest and, when valid, the program to evaluate.
type Compiled struct {
	OptionID        int                     `json:"option_id" yaml:"option_id"`
	Formula         string                  `json:"formula" yaml:"formula"`
	CustomVariables []option.CustomVariable `json:"custom_variables,omitempty" yaml:"custom_variables,omitempty"`
	Manifest        []option.Reference      `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Rewrites        []repair.Rewrite        `json:"rewrites,omitempty" yaml:"rewrites,omitempty"`
	// Repaired reports that stale references were rewritten
	Repaired bool `json:"repaired" yaml:"repaired"`
	// Changed reports that the stored text differs from Formula/CustomVariables
	Changed bool `json:"changed" yaml:"changed"`
	// ValidationError is the inline message for the editor, empty when the formula is valid
	ValidationError string `json:"validation_error,omitempty" yaml:"validation_error,omitempty"`
	// Variables lists the references the formula may use, for editor autocompletion
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`

	Program *formula.Program `json:"-" yaml:"-"`
	Err     error            `json:"-" yaml:"-"`
}

// Valid reports whether the formula compiled
func (c *Compiled) Valid() bool {
	return c.Err == nil
}

// Apply writes the repaired formula and manifest back to the option's settings
func (c *Compiled) Apply(o *option.Option) {
	fs := o.FormulaSettings()
	if fs == nil || o.ID != c.OptionID {
		return
	}
	fs.Formula.Expression = c.Formula
	fs.Formula.Variables = c.Manifest
	fs.CustomVariables = c.CustomVariables
}

// Compile repairs, normalizes, parses and resolves the formula of option optionID against the
// other options of its group. Formula problems are reported through Compiled.Err and
// ValidationError; the returned error is only for callers passing a non-formula option.
func Compile(options []*option.Option, optionID int) (*Compiled, error) {
	o := option.Find(options, optionID)
	if o == nil {
		return nil, fmt.Errorf("option %d not found", optionID)
	}
	fs := o.FormulaSettings()
	if fs == nil {
		return nil, fmt.Errorf("option %d is a %s option, not a price formula", optionID, o.Type)
	}

	repaired := repair.Apply(repair.Input{
		Formula:         fs.Formula.Expression,
		CustomVariables: fs.CustomVariables,
		Manifest:        fs.Formula.Variables,
	}, options)

	custom := make([]option.CustomVariable, len(repaired.CustomVariables))
	for i, cv := range repaired.CustomVariables {
		custom[i] = option.CustomVariable{Name: cv.Name, Formula: formula.Normalize(cv.Formula)}
	}

	c := &Compiled{
		OptionID:        optionID,
		Formula:         formula.Normalize(repaired.Formula),
		CustomVariables: custom,
		Manifest:        repaired.Manifest,
		Rewrites:        repaired.Rewrites,
		Repaired:        repaired.Changed,
	}

	c.Changed = c.Formula != fs.Formula.Expression
	for i := range custom {
		if custom[i].Formula != fs.CustomVariables[i].Formula {
			c.Changed = true
		}
	}

	cat := catalog.Build(options, optionID)
	c.Variables = append(cat.Variables(), resolver.ProductProperties...)

	resolved, err := resolver.Compile(c.Formula, custom, cat)
	if err != nil {
		c.Err = err
		c.ValidationError = err.Error()
		log.Debug().
			Int("option_id", optionID).
			Str("kind", string(formula.KindOf(err))).
			Err(err).
			Msg("formula failed to compile")
		return c, nil
	}

	c.Manifest = resolved.Manifest
	c.Program = resolved.Program
	return c, nil
}

// CompileGroup compiles every price-formula option of a group in declaration order
func CompileGroup(g *option.Group) []*Compiled {
	var out []*Compiled
	for _, o := range g.Options {
		if o.Type != option.TypePriceFormula {
			continue
		}
		c, err := Compile(g.Options, o.ID)
		if err != nil {
			log.Warn().Err(err).Int("group_id", g.ID).Int("option_id", o.ID).Msg("skipping formula")
			continue
		}
		out = append(out, c)
	}
	return out
}
