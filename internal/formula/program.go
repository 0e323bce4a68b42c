package formula

import (
	"math"
)

// Program is a main formula together with the custom variables it may reference. Custom
// trees are keyed by the bracket text that refers to them.
type Program struct {
	Main   *Tree
	Custom map[string]*Tree
}

// NewProgram bundles parsed trees for evaluation
func NewProgram(main *Tree, custom map[string]*Tree) *Program {
	if custom == nil {
		custom = map[string]*Tree{}
	}
	return &Program{Main: main, Custom: custom}
}

// Compile parses a standalone formula without custom variables
func Compile(text string) (*Program, error) {
	tree, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return NewProgram(tree, nil), nil
}

// EvaluateValue runs the program and returns the raw result value
func (p *Program) EvaluateValue(bindings map[string]any) (Value, error) {
	ctx := &EvalContext{
		Bindings:  bindings,
		Functions: Functions,
		custom:    p.Custom,
		memo:      map[string]Value{},
		visiting:  map[string]bool{},
	}
	return p.Main.Root.Eval(ctx)
}

// Evaluate runs the program against bindings keyed by bracket text. Absent bindings evaluate
// to 0 or "". The result must be numeric: booleans become 1 or 0, numeric strings are parsed,
// and anything else, including NaN and infinities, is an EvaluationError.
func (p *Program) Evaluate(bindings map[string]any) (float64, error) {
	v, err := p.EvaluateValue(bindings)
	if err != nil {
		return 0, err
	}
	return resultNumber(v)
}

func resultNumber(v Value) (float64, error) {
	var f float64
	switch val := v.(type) {
	case NilValue:
		return 0, nil
	case BoolValue:
		if val.Val {
			return 1, nil
		}
		return 0, nil
	case NumberValue:
		f = val.Val
	case StringValue:
		n, ok := parseNumeric(val.Val)
		if !ok {
			return 0, evalError("formula produced text %q instead of a number", val.Val)
		}
		f = n
	default:
		return 0, evalError("formula produced a %s instead of a number", v.Type())
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, evalError("formula produced %s", FormatNumber(f))
	}
	return f, nil
}
