package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionRegistry_Math(t *testing.T) {
	testCases := []struct {
		expression string
		expected   float64
	}{
		{"abs(-3.5)", 3.5},
		{"ceil(1.2)", 2},
		{"floor(-1.2)", -2},
		{"round(2.5)", 3},
		{"round(-2.5)", -3},
		{"round(1.2345, 2)", 1.23},
		{"round(1234, -2)", 1200},
		{"round(1.005, 2)", 1.01},
		{"round(-1.005, 2)", -1.01},
		{"trunc(-7.9)", -7},
		{"sqrt(16)", 4},
		{"pow(3, 2)", 9},
		{"exp(0)", 1},
		{"log(1)", 0},
		{"log10(1000)", 3},
		{"min(4, 2, 8)", 2},
		{"max(4, 2, 8)", 8},
		{"sign(-0.1)", -1},
		{"mod(7, 3)", 1},
		{"mod(-7, 3)", 2},
	}

	for _, tc := range testCases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := evaluate(t, tc.expression, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, got, 1e-9)
		})
	}
}

func TestFunctionRegistry_Logical(t *testing.T) {
	testCases := []struct {
		expression string
		expected   float64
	}{
		{"if(1 > 0, 5, 6)", 5},
		{"if(0, 5, 6)", 6},
		{"if(0, 5)", 0},
		{"and(1, 2, 3)", 1},
		{"and(1, 0)", 0},
		{"or(0, 0, 4)", 1},
		{"not(0)", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := evaluate(t, tc.expression, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFunctionRegistry_Custom(t *testing.T) {
	testCases := []struct {
		expression string
		expected   float64
	}{
		{"clamp(15, 0, 10)", 10},
		{"clamp(-1, 0, 10)", 0},
		{"clamp(5, 10, 0)", 5},
		{"between(5, 1, 10)", 1},
		{"between(11, 1, 10)", 0},
		{"roundup(11, 5)", 15},
		{"rounddown(14, 5)", 10},
		{"mround(12.5, 5)", 15},
		{"roundup(7, 0)", 7},
		{"choose(2, 10, 20, 30)", 20},
		{"len('Größe')", 5},
	}

	for _, tc := range testCases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := evaluate(t, tc.expression, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFunctionRegistry_Errors(t *testing.T) {
	_, err := evaluate(t, "mod(1, 0)", nil)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = evaluate(t, "choose(4, 1, 2)", nil)
	assert.ErrorIs(t, err, ErrEvaluation)

	_, err = evaluate(t, "log(0)", nil)
	assert.ErrorIs(t, err, ErrEvaluation)
}

func TestFunctionRegistry_Call(t *testing.T) {
	fr := NewFunctionRegistry()

	result, err := fr.Call("MAX", []Value{NumberValue{Val: 1}, NumberValue{Val: 3}})
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 3}, result)

	result, err = fr.Call("if", []Value{BoolValue{Val: false}, NumberValue{Val: 1}, NumberValue{Val: 2}})
	require.NoError(t, err)
	assert.Equal(t, NumberValue{Val: 2}, result)

	_, err = fr.Call("clamp", []Value{NumberValue{Val: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires exactly 3 argument(s)")

	_, err = fr.Call("eval", nil)
	assert.Error(t, err)
}

func TestFunctionRegistry_List(t *testing.T) {
	defs := NewFunctionRegistry().List()
	require.NotEmpty(t, defs)

	names := map[string]string{}
	for _, d := range defs {
		names[d.Name] = d.Category
	}
	assert.Equal(t, CategoryMath, names["round"])
	assert.Equal(t, CategoryLogical, names["if"])
	assert.Equal(t, CategoryCustom, names["choose"])
	assert.Equal(t, CategoryCustom, defs[0].Category, "sorted by category")
	assert.Len(t, FunctionDefs, len(defs))
	assert.Len(t, ExpressionDefs, 6)
}
