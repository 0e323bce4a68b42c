package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Variables(t *testing.T) {
	tree, err := Parse("[length] * [width] + [length] / [size.choices.large.value]")
	require.NoError(t, err)

	assert.Equal(t, []string{"length", "width", "size.choices.large.value"}, tree.Raws())
	assert.Equal(t, 0, tree.Variables[0].Offset)
	assert.Equal(t, 11, tree.Variables[1].Offset)
}

func TestParse_NormalizesSource(t *testing.T) {
	tree, err := Parse("  ( [ a ] +1 ) ")
	require.NoError(t, err)
	assert.Equal(t, "([a] +1)", tree.Source)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		kind  ErrorKind
		msg   string
	}{
		{name: "Empty", input: "", kind: KindEmptyExpression},
		{name: "Blank", input: "   ", kind: KindEmptyExpression},
		{name: "Bare identifier", input: "length * 2", kind: KindSyntaxError, msg: "variables must be written as [length]"},
		{name: "Unknown function", input: "median([a])", kind: KindSyntaxError, msg: "unknown function"},
		{name: "Too few arguments", input: "clamp([a], 1)", kind: KindSyntaxError, msg: "requires exactly 3"},
		{name: "Too many arguments", input: "round(1, 2, 3)", kind: KindSyntaxError, msg: "requires 1 to 2"},
		{name: "Missing operand", input: "[a] +", kind: KindSyntaxError, msg: "unexpected end"},
		{name: "Unbalanced paren", input: "([a] + 1", kind: KindSyntaxError, msg: "expected ')'"},
		{name: "Trailing token", input: "[a] [b]", kind: KindSyntaxError, msg: "unexpected"},
		{name: "Ternary without colon", input: "[a] ? 1", kind: KindSyntaxError, msg: "':'"},
		{name: "Trailing comma", input: "max(1,)", kind: KindSyntaxError, msg: "unexpected"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestParse_SyntaxErrorOffset(t *testing.T) {
	_, err := Parse("[a] + foo")
	require.Error(t, err)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 6, fe.Offset)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestParse_FunctionNamesCaseInsensitive(t *testing.T) {
	tree, err := Parse("ROUND(1.25, 1) + Max(1, 2)")
	require.NoError(t, err)

	call, ok := tree.Root.(*BinaryOpExpr).Left.(*CallExpr)
	require.True(t, ok)
	assert.Equal(t, "round", call.Name)
}
