// Package repair rewrites stale bracket references after options or choices were renamed.
package repair

import (
	"strings"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
)

// Input is a formula as it was last saved
type Input struct {
	Formula         string
	CustomVariables []option.CustomVariable
	Manifest        []option.Reference
}

// Rewrite is one bracket text replacement
type Rewrite struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Result is the repaired formula. Changed reports whether any text differs from the input, so
// the caller knows whether to persist it.
type Result struct {
	Formula         string
	CustomVariables []option.CustomVariable
	Manifest        []option.Reference
	Rewrites        []Rewrite
	Changed         bool
}

// Apply re-renders every manifest reference whose option still exists from the option's
// current name and choices. Choices are found by id, then by current label, then by the
// position recorded at save time; a reference with no match is left as is. All brackets are
// substituted in a single pass so swapped names cannot collide. Apply is a pure function and
// Apply on its own result changes nothing.
func Apply(in Input, options []*option.Option) Result {
	res := Result{
		Formula:         in.Formula,
		CustomVariables: append([]option.CustomVariable(nil), in.CustomVariables...),
		Manifest:        make([]option.Reference, len(in.Manifest)),
	}
	copy(res.Manifest, in.Manifest)

	renames := map[string]string{}
	for i, ref := range res.Manifest {
		if !ref.IsOption() {
			continue
		}
		o := option.Find(options, ref.OptionID)
		if o == nil {
			continue
		}
		updated, ok := rerender(ref, o)
		if !ok || updated.Raw == ref.Raw {
			res.Manifest[i] = updated
			continue
		}
		if _, dup := renames[ref.Raw]; !dup {
			renames[ref.Raw] = updated.Raw
			res.Rewrites = append(res.Rewrites, Rewrite{From: ref.Raw, To: updated.Raw})
		}
		res.Manifest[i] = updated
	}

	if len(renames) == 0 {
		return res
	}

	res.Formula = substitute(in.Formula, renames)
	for i := range res.CustomVariables {
		res.CustomVariables[i].Formula = substitute(res.CustomVariables[i].Formula, renames)
	}

	res.Changed = res.Formula != in.Formula
	for i := range res.CustomVariables {
		if res.CustomVariables[i].Formula != in.CustomVariables[i].Formula {
			res.Changed = true
		}
	}
	return res
}

// rerender computes the current text of a reference. ok is false when a choice reference no
// longer matches any choice.
func rerender(ref option.Reference, o *option.Option) (option.Reference, bool) {
	head := catalog.Identifier(o)

	switch {
	case ref.Kind == option.KindOptionDirect:
		ref.Raw = head
	case ref.IsChoice():
		c, index := findChoice(ref, o)
		if c == nil {
			return ref, false
		}
		ref.Choice = catalog.ChoiceSegment(c, index)
		ref.ChoiceID = c.ID
		ref.ChoiceIndex = index
		ref.Raw = strings.Join([]string{head, catalog.PropChoices, ref.Choice, ref.Property}, ".")
	default:
		ref.Raw = head + "." + ref.Property
	}
	return ref, true
}

func findChoice(ref option.Reference, o *option.Option) (*option.Choice, int) {
	if ref.ChoiceID != "" {
		if c, i := o.Choice(ref.ChoiceID); c != nil {
			return c, i
		}
	}
	for i, c := range o.Choices {
		if catalog.ChoiceSegment(c, i) == ref.Choice {
			return c, i
		}
	}
	if ref.ChoiceIndex >= 0 && ref.ChoiceIndex < len(o.Choices) {
		return o.Choices[ref.ChoiceIndex], ref.ChoiceIndex
	}
	return nil, -1
}

// substitute rewrites the brackets of text named in renames. Brackets inside string literals
// are text, not references, and are kept.
func substitute(text string, renames map[string]string) string {
	var b strings.Builder
	last := 0
	for _, span := range formula.VariableSpans(text) {
		to, ok := renames[span.Path]
		if !ok {
			continue
		}
		b.WriteString(text[last:span.Start])
		b.WriteString("[" + to + "]")
		last = span.End
	}
	b.WriteString(text[last:])
	return b.String()
}
