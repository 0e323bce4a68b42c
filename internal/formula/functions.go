package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Function categories
const (
	CategoryMath    = "math"
	CategoryLogical = "logical"
	CategoryCustom  = "custom"
)

// Function is one entry of the closed function library. Eager functions receive evaluated
// arguments through Call; Lazy functions evaluate their own arguments and may short-circuit.
type Function struct {
	Name        string
	Category    string
	Signature   string
	Description string
	MinArgs     int
	// MaxArgs is -1 for variadic functions
	MaxArgs int
	Call    func(args []Value) (Value, error)
	Lazy    func(ctx *EvalContext, args []Expression) (Value, error)
}

func (f *Function) arity() string {
	switch {
	case f.MaxArgs < 0:
		return fmt.Sprintf("requires at least %d argument(s)", f.MinArgs)
	case f.MinArgs == f.MaxArgs:
		return fmt.Sprintf("requires exactly %d argument(s)", f.MinArgs)
	default:
		return fmt.Sprintf("requires %d to %d arguments", f.MinArgs, f.MaxArgs)
	}
}

// FunctionDef describes a library function for documentation output
type FunctionDef struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Signature   string `json:"signature" yaml:"signature"`
	Description string `json:"description" yaml:"description"`
}

// FunctionRegistry holds the functions formulas may call. The set is fixed at construction;
// formulas cannot define functions.
type FunctionRegistry struct {
	functions map[string]*Function
}

// Functions is the library every formula is parsed and evaluated against
var Functions = NewFunctionRegistry()

// NewFunctionRegistry creates a registry with the math, logical and custom functions
func NewFunctionRegistry() *FunctionRegistry {
	fr := &FunctionRegistry{
		functions: make(map[string]*Function),
	}

	fr.registerMathFunctions()
	fr.registerLogicalFunctions()
	fr.registerCustomFunctions()

	return fr
}

func (fr *FunctionRegistry) register(fn *Function) {
	fr.functions[strings.ToLower(fn.Name)] = fn
}

// Get looks a function up by case-insensitive name
func (fr *FunctionRegistry) Get(name string) (*Function, bool) {
	fn, ok := fr.functions[strings.ToLower(name)]
	return fn, ok
}

// Call invokes an eager function with evaluated arguments
func (fr *FunctionRegistry) Call(name string, args []Value) (Value, error) {
	fn, ok := fr.Get(name)
	if !ok {
		return nil, evalError("unknown function: %s", name)
	}
	if len(args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(args) > fn.MaxArgs) {
		return nil, evalError("%s() %s", fn.Name, fn.arity())
	}
	if fn.Lazy != nil {
		exprs := make([]Expression, len(args))
		for i, a := range args {
			exprs[i] = &LiteralExpr{Value: a}
		}
		return fn.Lazy(&EvalContext{Functions: fr}, exprs)
	}
	return fn.Call(args)
}

// List returns the library sorted by category then name
func (fr *FunctionRegistry) List() []FunctionDef {
	defs := make([]FunctionDef, 0, len(fr.functions))
	for _, fn := range fr.functions {
		defs = append(defs, FunctionDef{
			Name:        fn.Name,
			Category:    fn.Category,
			Signature:   fn.Signature,
			Description: fn.Description,
		})
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Category != defs[j].Category {
			return defs[i].Category < defs[j].Category
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

func num(f float64) Value { return NumberValue{Val: f} }

func unary(name, desc string, f func(float64) (float64, error)) *Function {
	return &Function{
		Name: name, Category: CategoryMath, Signature: name + "(x)", Description: desc,
		MinArgs: 1, MaxArgs: 1,
		Call: func(args []Value) (Value, error) {
			r, err := f(ToNumber(args[0]))
			if err != nil {
				return nil, err
			}
			return num(r), nil
		},
	}
}

func pure(f func(float64) float64) func(float64) (float64, error) {
	return func(x float64) (float64, error) { return f(x), nil }
}

// roundHalfAway rounds to the given number of decimals, halves away from zero. The shortest
// decimal form of x is rounded, the way prices are, so 1.005 rounds up to 1.01.
func roundHalfAway(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(int32(decimals)).InexactFloat64()
}

func (fr *FunctionRegistry) registerMathFunctions() {
	fr.register(unary("abs", "Absolute value.", pure(math.Abs)))
	fr.register(unary("ceil", "Smallest integer not less than x.", pure(math.Ceil)))
	fr.register(unary("floor", "Largest integer not greater than x.", pure(math.Floor)))
	fr.register(unary("trunc", "x without its fractional part.", pure(math.Trunc)))
	fr.register(unary("exp", "e raised to x.", pure(math.Exp)))
	fr.register(unary("sqrt", "Square root; fails for negative x.", func(x float64) (float64, error) {
		if x < 0 {
			return 0, evalError("sqrt() of negative number %s", FormatNumber(x))
		}
		return math.Sqrt(x), nil
	}))
	fr.register(unary("log", "Natural logarithm; fails for x <= 0.", func(x float64) (float64, error) {
		if x <= 0 {
			return 0, evalError("log() of non-positive number %s", FormatNumber(x))
		}
		return math.Log(x), nil
	}))
	fr.register(unary("log10", "Base-10 logarithm; fails for x <= 0.", func(x float64) (float64, error) {
		if x <= 0 {
			return 0, evalError("log10() of non-positive number %s", FormatNumber(x))
		}
		return math.Log10(x), nil
	}))
	fr.register(unary("sign", "-1, 0 or 1 depending on the sign of x.", func(x float64) (float64, error) {
		switch {
		case x > 0:
			return 1, nil
		case x < 0:
			return -1, nil
		}
		return 0, nil
	}))

	fr.register(&Function{
		Name: "round", Category: CategoryMath, Signature: "round(x[, decimals])",
		Description: "Rounds half away from zero to the given number of decimals (default 0), in decimal rather than binary, so round(1.005, 2) is 1.01.",
		MinArgs:     1, MaxArgs: 2,
		Call: func(args []Value) (Value, error) {
			decimals := 0
			if len(args) == 2 {
				decimals = int(ToNumber(args[1]))
			}
			return num(roundHalfAway(ToNumber(args[0]), decimals)), nil
		},
	})

	fr.register(&Function{
		Name: "pow", Category: CategoryMath, Signature: "pow(x, y)",
		Description: "x raised to y, same as x ^ y.",
		MinArgs:     2, MaxArgs: 2,
		Call: func(args []Value) (Value, error) {
			return num(math.Pow(ToNumber(args[0]), ToNumber(args[1]))), nil
		},
	})

	fr.register(&Function{
		Name: "mod", Category: CategoryMath, Signature: "mod(x, y)",
		Description: "Remainder of x / y with the sign of y; fails when y is 0.",
		MinArgs:     2, MaxArgs: 2,
		Call: func(args []Value) (Value, error) {
			x, y := ToNumber(args[0]), ToNumber(args[1])
			if y == 0 {
				return nil, &Error{Kind: KindDivisionByZero, Message: "mod() by zero", Offset: -1}
			}
			return num(x - y*math.Floor(x/y)), nil
		},
	})

	fr.register(&Function{
		Name: "min", Category: CategoryMath, Signature: "min(x, ...)",
		Description: "Smallest argument.",
		MinArgs:     1, MaxArgs: -1,
		Call: func(args []Value) (Value, error) {
			m := ToNumber(args[0])
			for _, a := range args[1:] {
				m = math.Min(m, ToNumber(a))
			}
			return num(m), nil
		},
	})

	fr.register(&Function{
		Name: "max", Category: CategoryMath, Signature: "max(x, ...)",
		Description: "Largest argument.",
		MinArgs:     1, MaxArgs: -1,
		Call: func(args []Value) (Value, error) {
			m := ToNumber(args[0])
			for _, a := range args[1:] {
				m = math.Max(m, ToNumber(a))
			}
			return num(m), nil
		},
	})
}

func (fr *FunctionRegistry) registerLogicalFunctions() {
	fr.register(&Function{
		Name: "if", Category: CategoryLogical, Signature: "if(condition, then[, else])",
		Description: "then when condition holds, else otherwise (default 0). Only the selected branch is evaluated.",
		MinArgs:     2, MaxArgs: 3,
		Lazy: func(ctx *EvalContext, args []Expression) (Value, error) {
			cond, err := args[0].Eval(ctx)
			if err != nil {
				return nil, err
			}
			if ToBool(cond) {
				return args[1].Eval(ctx)
			}
			if len(args) == 3 {
				return args[2].Eval(ctx)
			}
			return num(0), nil
		},
	})

	fr.register(&Function{
		Name: "and", Category: CategoryLogical, Signature: "and(x, ...)",
		Description: "true when every argument holds; stops at the first that does not.",
		MinArgs:     1, MaxArgs: -1,
		Lazy: func(ctx *EvalContext, args []Expression) (Value, error) {
			for _, a := range args {
				v, err := a.Eval(ctx)
				if err != nil {
					return nil, err
				}
				if !ToBool(v) {
					return BoolValue{Val: false}, nil
				}
			}
			return BoolValue{Val: true}, nil
		},
	})

	fr.register(&Function{
		Name: "or", Category: CategoryLogical, Signature: "or(x, ...)",
		Description: "true when any argument holds; stops at the first that does.",
		MinArgs:     1, MaxArgs: -1,
		Lazy: func(ctx *EvalContext, args []Expression) (Value, error) {
			for _, a := range args {
				v, err := a.Eval(ctx)
				if err != nil {
					return nil, err
				}
				if ToBool(v) {
					return BoolValue{Val: true}, nil
				}
			}
			return BoolValue{Val: false}, nil
		},
	})

	fr.register(&Function{
		Name: "not", Category: CategoryLogical, Signature: "not(x)",
		Description: "Logical negation.",
		MinArgs:     1, MaxArgs: 1,
		Call: func(args []Value) (Value, error) {
			return BoolValue{Val: !ToBool(args[0])}, nil
		},
	})
}

func stepRound(name, desc string, f func(float64) float64) *Function {
	return &Function{
		Name: name, Category: CategoryCustom, Signature: name + "(x, step)", Description: desc,
		MinArgs: 2, MaxArgs: 2,
		Call: func(args []Value) (Value, error) {
			x, step := ToNumber(args[0]), math.Abs(ToNumber(args[1]))
			if step == 0 {
				return num(x), nil
			}
			return num(f(x/step) * step), nil
		},
	}
}

func (fr *FunctionRegistry) registerCustomFunctions() {
	fr.register(&Function{
		Name: "clamp", Category: CategoryCustom, Signature: "clamp(x, low, high)",
		Description: "x limited to the range [low, high].",
		MinArgs:     3, MaxArgs: 3,
		Call: func(args []Value) (Value, error) {
			x, lo, hi := ToNumber(args[0]), ToNumber(args[1]), ToNumber(args[2])
			if lo > hi {
				lo, hi = hi, lo
			}
			return num(math.Min(math.Max(x, lo), hi)), nil
		},
	})

	fr.register(&Function{
		Name: "between", Category: CategoryCustom, Signature: "between(x, low, high)",
		Description: "true when low <= x <= high.",
		MinArgs:     3, MaxArgs: 3,
		Call: func(args []Value) (Value, error) {
			x := ToNumber(args[0])
			return BoolValue{Val: x >= ToNumber(args[1]) && x <= ToNumber(args[2])}, nil
		},
	})

	fr.register(stepRound("roundup", "x rounded up to the next multiple of step.", math.Ceil))
	fr.register(stepRound("rounddown", "x rounded down to the previous multiple of step.", math.Floor))
	fr.register(stepRound("mround", "x rounded to the nearest multiple of step, halves away from zero.", math.Round))

	fr.register(&Function{
		Name: "choose", Category: CategoryCustom, Signature: "choose(index, a, b, ...)",
		Description: "The index-th of the remaining arguments, counting from 1. Only that argument is evaluated.",
		MinArgs:     2, MaxArgs: -1,
		Lazy: func(ctx *EvalContext, args []Expression) (Value, error) {
			iv, err := args[0].Eval(ctx)
			if err != nil {
				return nil, err
			}
			i := int(math.Trunc(ToNumber(iv)))
			if i < 1 || i >= len(args) {
				return nil, evalError("choose() index %d out of range 1..%d", i, len(args)-1)
			}
			return args[i].Eval(ctx)
		},
	})

	fr.register(&Function{
		Name: "len", Category: CategoryCustom, Signature: "len(text)",
		Description: "Number of characters in text.",
		MinArgs:     1, MaxArgs: 1,
		Call: func(args []Value) (Value, error) {
			return num(float64(utf8.RuneCountInString(ToString(args[0])))), nil
		},
	})
}
