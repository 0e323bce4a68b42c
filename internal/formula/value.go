package formula

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a runtime value inside a formula
type Value interface {
	Type() ValueType
	GoValue() any
	String() string
}

// ValueType names the kind of a value
type ValueType string

const (
	TypeNil    ValueType = "nil"
	TypeBool   ValueType = "bool"
	TypeNumber ValueType = "number"
	TypeString ValueType = "string"
)

// NilValue is what an absent binding evaluates to: 0 or the empty string depending on use
type NilValue struct{}

func (v NilValue) Type() ValueType { return TypeNil }
func (v NilValue) GoValue() any    { return nil }
func (v NilValue) String() string  { return "" }

type BoolValue struct {
	Val bool
}

func (v BoolValue) Type() ValueType { return TypeBool }
func (v BoolValue) GoValue() any    { return v.Val }
func (v BoolValue) String() string {
	if v.Val {
		return "true"
	}
	return "false"
}

type NumberValue struct {
	Val float64
}

func (v NumberValue) Type() ValueType { return TypeNumber }
func (v NumberValue) GoValue() any    { return v.Val }

// String formats without exponent or locale so every evaluator agrees on the text
func (v NumberValue) String() string { return FormatNumber(v.Val) }

type StringValue struct {
	Val string
}

func (v StringValue) Type() ValueType { return TypeString }
func (v StringValue) GoValue() any    { return v.Val }
func (v StringValue) String() string  { return v.Val }

// FormatNumber renders a float the same way everywhere
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GoToValue converts a binding to a formula Value
func GoToValue(v any) Value {
	if v == nil {
		return NilValue{}
	}

	switch val := v.(type) {
	case Value:
		return val
	case bool:
		return BoolValue{Val: val}
	case int:
		return NumberValue{Val: float64(val)}
	case int32:
		return NumberValue{Val: float64(val)}
	case int64:
		return NumberValue{Val: float64(val)}
	case float32:
		return NumberValue{Val: float64(val)}
	case float64:
		return NumberValue{Val: val}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return NumberValue{Val: f}
		}
		return StringValue{Val: val.String()}
	case string:
		return StringValue{Val: val}
	default:
		return StringValue{Val: fmt.Sprintf("%v", v)}
	}
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ToBool(v Value) bool {
	switch val := v.(type) {
	case BoolValue:
		return val.Val
	case NumberValue:
		return val.Val != 0
	case StringValue:
		if f, ok := parseNumeric(val.Val); ok {
			return f != 0
		}
		return val.Val != ""
	default:
		return false
	}
}

func ToNumber(v Value) float64 {
	switch val := v.(type) {
	case NumberValue:
		return val.Val
	case BoolValue:
		if val.Val {
			return 1
		}
		return 0
	case StringValue:
		f, _ := parseNumeric(val.Val)
		return f
	default:
		return 0
	}
}

func ToString(v Value) string {
	return v.String()
}

func isString(v Value) bool {
	return v.Type() == TypeString
}

// valuesEqual compares as strings when either side is a string, numerically otherwise
func valuesEqual(left, right Value) bool {
	if isString(left) || isString(right) {
		return ToString(left) == ToString(right)
	}
	return ToNumber(left) == ToNumber(right)
}

// compareValues orders numerically unless a string operand is not a number
func compareValues(left, right Value) int {
	textual := false
	for _, v := range []Value{left, right} {
		if s, ok := v.(StringValue); ok {
			if _, numeric := parseNumeric(s.Val); !numeric {
				textual = true
			}
		}
	}
	if textual {
		return strings.Compare(ToString(left), ToString(right))
	}

	l, r := ToNumber(left), ToNumber(right)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}
