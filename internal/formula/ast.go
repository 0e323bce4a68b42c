package formula

import (
	"fmt"
	"math"
)

var (
	ExpressionDefs []ExpressionDef
	FunctionDefs   []FunctionDef
)

type ExpressionDef struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples" yaml:"examples"`
}

func init() {
	expressions := []Expression{
		&LiteralExpr{},
		&VariableExpr{},
		&BinaryOpExpr{},
		&UnaryOpExpr{},
		&ConditionalExpr{},
		&CallExpr{},
	}

	ExpressionDefs = make([]ExpressionDef, len(expressions))
	for i, expr := range expressions {
		ExpressionDefs[i] = expr.Definition()
	}

	FunctionDefs = Functions.List()
}

type Expression interface {
	Eval(*EvalContext) (Value, error)
	Definition() ExpressionDef
}

// LiteralExpr represents a literal value
type LiteralExpr struct {
	Value Value
}

func (e *LiteralExpr) Eval(ctx *EvalContext) (Value, error) {
	return e.Value, nil
}

func (e *LiteralExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name:        "Literal",
		Description: "Numbers (42, 3.5), quoted strings ('Large', \"Large\") and the booleans true and false.",
		Examples:    []string{"42", "0.25", "'Large'", "true"},
	}
}

// VariableExpr is a bracket reference such as [length] or [size.choices.large.price]
type VariableExpr struct {
	Raw string
	Pos int
}

func (e *VariableExpr) Eval(ctx *EvalContext) (Value, error) {
	return ctx.lookup(e.Raw)
}

func (e *VariableExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name: "Variable",
		Description: "Reference to an option, a product property or a custom variable, written in square brackets. " +
			"Dotted suffixes select a sub-property. A hidden or empty option evaluates to 0 or an empty string.",
		Examples: []string{"[length]", "[product_price]", "[size.count]", "[size.choices.large.checked]", "[notes.characters]"},
	}
}

type BinaryOpType string

const (
	BinaryOpTypeAdd BinaryOpType = "+"
	BinaryOpTypeSub BinaryOpType = "-"
	BinaryOpTypeMul BinaryOpType = "*"
	BinaryOpTypeDiv BinaryOpType = "/"
	BinaryOpTypePow BinaryOpType = "^"

	BinaryOpTypeEq  BinaryOpType = "="
	BinaryOpTypeNeq BinaryOpType = "!="
	BinaryOpTypeLt  BinaryOpType = "<"
	BinaryOpTypeGt  BinaryOpType = ">"
	BinaryOpTypeLte BinaryOpType = "<="
	BinaryOpTypeGte BinaryOpType = ">="
	BinaryOpTypeAnd BinaryOpType = "&&"
	BinaryOpTypeOr  BinaryOpType = "||"
)

// BinaryOpExpr represents a binary operation
type BinaryOpExpr struct {
	Left  Expression
	Op    BinaryOpType
	Right Expression
	Pos   int
}

func (e *BinaryOpExpr) Eval(ctx *EvalContext) (Value, error) {
	left, err := e.Left.Eval(ctx)
	if err != nil {
		return nil, err
	}

	// && and || short-circuit
	switch e.Op {
	case BinaryOpTypeAnd:
		if !ToBool(left) {
			return BoolValue{Val: false}, nil
		}
		right, err := e.Right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return BoolValue{Val: ToBool(right)}, nil
	case BinaryOpTypeOr:
		if ToBool(left) {
			return BoolValue{Val: true}, nil
		}
		right, err := e.Right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return BoolValue{Val: ToBool(right)}, nil
	}

	right, err := e.Right.Eval(ctx)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case BinaryOpTypeEq:
		return BoolValue{Val: valuesEqual(left, right)}, nil
	case BinaryOpTypeNeq:
		return BoolValue{Val: !valuesEqual(left, right)}, nil
	case BinaryOpTypeLt:
		return BoolValue{Val: compareValues(left, right) < 0}, nil
	case BinaryOpTypeGt:
		return BoolValue{Val: compareValues(left, right) > 0}, nil
	case BinaryOpTypeLte:
		return BoolValue{Val: compareValues(left, right) <= 0}, nil
	case BinaryOpTypeGte:
		return BoolValue{Val: compareValues(left, right) >= 0}, nil
	case BinaryOpTypeAdd:
		return NumberValue{Val: ToNumber(left) + ToNumber(right)}, nil
	case BinaryOpTypeSub:
		return NumberValue{Val: ToNumber(left) - ToNumber(right)}, nil
	case BinaryOpTypeMul:
		return NumberValue{Val: ToNumber(left) * ToNumber(right)}, nil
	case BinaryOpTypeDiv:
		r := ToNumber(right)
		if r == 0 {
			return nil, &Error{Kind: KindDivisionByZero, Message: "division by zero", Offset: e.Pos}
		}
		return NumberValue{Val: ToNumber(left) / r}, nil
	case BinaryOpTypePow:
		return NumberValue{Val: math.Pow(ToNumber(left), ToNumber(right))}, nil
	default:
		return nil, evalError("unknown operator: %s", e.Op)
	}
}

func (e *BinaryOpExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name: "BinaryOperation",
		Description: "Arithmetic (+, -, *, /, ^), comparison (=, ==, !=, <>, <, >, <=, >=) and logical (&&, ||) operators. " +
			"^ is right-associative. = and != compare as text when either side is text. Division by zero fails the formula.",
		Examples: []string{"[length] * [width]", "([length] * [width]) - [product_price]", "[qty] >= 10 && [member]", "2 ^ [steps]"},
	}
}

type UnaryOpType string

const (
	UnaryOpTypeNot UnaryOpType = "!"
	UnaryOpTypeNeg UnaryOpType = "-"
	UnaryOpTypePos UnaryOpType = "+"
)

// UnaryOpExpr represents a unary operation
type UnaryOpExpr struct {
	Op   UnaryOpType
	Expr Expression
}

func (e *UnaryOpExpr) Eval(ctx *EvalContext) (Value, error) {
	val, err := e.Expr.Eval(ctx)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case UnaryOpTypeNot:
		return BoolValue{Val: !ToBool(val)}, nil
	case UnaryOpTypeNeg:
		return NumberValue{Val: -ToNumber(val)}, nil
	case UnaryOpTypePos:
		return NumberValue{Val: ToNumber(val)}, nil
	default:
		return nil, evalError("unknown unary operator: %s", e.Op)
	}
}

func (e *UnaryOpExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name:        "UnaryOperation",
		Description: "Logical NOT (!) and numeric sign (-, +) applied to a single operand.",
		Examples:    []string{"![gift_wrap.any]", "-[discount]"},
	}
}

// ConditionalExpr represents a ternary conditional expression
type ConditionalExpr struct {
	Condition Expression
	TrueExpr  Expression
	FalseExpr Expression
}

func (e *ConditionalExpr) Eval(ctx *EvalContext) (Value, error) {
	cond, err := e.Condition.Eval(ctx)
	if err != nil {
		return nil, err
	}

	if ToBool(cond) {
		return e.TrueExpr.Eval(ctx)
	}
	return e.FalseExpr.Eval(ctx)
}

func (e *ConditionalExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name:        "Conditional",
		Description: "condition ? a : b selects one branch; only the selected branch is evaluated.",
		Examples:    []string{"[size.selected] ? [size.value] : 0", "[qty] > 100 ? 0.9 : 1"},
	}
}

// CallExpr represents a call to a library function
type CallExpr struct {
	Name string
	Args []Expression
	Pos  int
}

func (e *CallExpr) Eval(ctx *EvalContext) (Value, error) {
	fn, ok := ctx.Functions.Get(e.Name)
	if !ok {
		return nil, evalError("unknown function: %s", e.Name)
	}
	if fn.Lazy != nil {
		return fn.Lazy(ctx, e.Args)
	}

	args := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		val, err := arg.Eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	return ctx.Functions.Call(e.Name, args)
}

func (e *CallExpr) Definition() ExpressionDef {
	return ExpressionDef{
		Name:        "FunctionCall",
		Description: "Call to a function of the closed library: name(arg1, arg2, ...). Names are case-insensitive.",
		Examples:    []string{"round([area] * 1.2, 2)", "if([size.any], [size.sum], 0)", "max([a], [b], 10)"},
	}
}

// EvalContext carries the bindings and custom variables of one evaluation
type EvalContext struct {
	Bindings  map[string]any
	Functions *FunctionRegistry

	custom   map[string]*Tree
	memo     map[string]Value
	visiting map[string]bool
}

func (ctx *EvalContext) lookup(raw string) (Value, error) {
	if tree, ok := ctx.custom[raw]; ok {
		if v, done := ctx.memo[raw]; done {
			return v, nil
		}
		if ctx.visiting[raw] {
			return nil, CyclicCustomVariable([]string{raw, raw})
		}
		ctx.visiting[raw] = true
		v, err := tree.Root.Eval(ctx)
		delete(ctx.visiting, raw)
		if err != nil {
			return nil, fmt.Errorf("custom variable %s: %w", raw, err)
		}
		ctx.memo[raw] = v
		return v, nil
	}

	if b, ok := ctx.Bindings[raw]; ok {
		return GoToValue(b), nil
	}
	return NilValue{}, nil
}
