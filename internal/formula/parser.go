package formula

import (
	"strconv"
	"strings"
)

// Bracket is one distinct bracket reference of a formula
type Bracket struct {
	Raw    string `json:"raw" yaml:"raw"`
	Offset int    `json:"offset" yaml:"offset"`
}

// Tree is a parsed formula
type Tree struct {
	// Source is the normalized formula text; offsets refer to it
	Source    string
	Root      Expression
	Variables []Bracket
}

// Raws returns the distinct bracket references in order of first appearance
func (t *Tree) Raws() []string {
	out := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		out[i] = v.Raw
	}
	return out
}

type Parser struct {
	tokens    []Token
	pos       int
	functions *FunctionRegistry
	seen      map[string]bool
	variables []Bracket
}

// Parse normalizes and parses formula text against the default function library
func Parse(input string) (*Tree, error) {
	return ParseWith(input, Functions)
}

// ParseWith parses formula text with calls restricted to the given registry
func ParseWith(input string, functions *FunctionRegistry) (*Tree, error) {
	source := Normalize(input)
	if source == "" {
		return nil, &Error{Kind: KindEmptyExpression, Message: "formula is empty", Offset: -1}
	}

	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens, functions: functions, seen: map[string]bool{}}
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, syntaxError(tok.Pos, "unexpected %q", tok.Value)
	}

	return &Tree{Source: source, Root: root, Variables: p.variables}, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() {
	p.pos++
}

func (p *Parser) unexpected() error {
	tok := p.current()
	if tok.Type == TokenEOF {
		return syntaxError(tok.Pos, "unexpected end of formula")
	}
	return syntaxError(tok.Pos, "unexpected %q", tok.Value)
}

func (p *Parser) expect(tt TokenType, what string) error {
	if p.current().Type != tt {
		tok := p.current()
		if tok.Type == TokenEOF {
			return syntaxError(tok.Pos, "expected %s before end of formula", what)
		}
		return syntaxError(tok.Pos, "expected %s, found %q", what, tok.Value)
	}
	p.advance()
	return nil
}

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (Expression, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current().Type != TokenQuestion {
		return expr, nil
	}
	p.advance()

	trueExpr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenColon, "':' in conditional"); err != nil {
		return nil, err
	}
	falseExpr, err := p.parseTernary()
	if err != nil {
		return nil, err
	}

	return &ConditionalExpr{Condition: expr, TrueExpr: trueExpr, FalseExpr: falseExpr}, nil
}

// binaryLevel parses left-associative operators of one precedence level
func (p *Parser) binaryLevel(next func() (Expression, error), ops map[TokenType]BinaryOpType) (Expression, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.current()
		op, ok := ops[tok.Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpExpr{Left: left, Op: op, Right: right, Pos: tok.Pos}
	}
}

func (p *Parser) parseOr() (Expression, error) {
	return p.binaryLevel(p.parseAnd, map[TokenType]BinaryOpType{TokenOr: BinaryOpTypeOr})
}

func (p *Parser) parseAnd() (Expression, error) {
	return p.binaryLevel(p.parseEquality, map[TokenType]BinaryOpType{TokenAnd: BinaryOpTypeAnd})
}

func (p *Parser) parseEquality() (Expression, error) {
	return p.binaryLevel(p.parseComparison, map[TokenType]BinaryOpType{
		TokenEq: BinaryOpTypeEq,
		TokenNe: BinaryOpTypeNeq,
	})
}

func (p *Parser) parseComparison() (Expression, error) {
	return p.binaryLevel(p.parseAdditive, map[TokenType]BinaryOpType{
		TokenLt: BinaryOpTypeLt,
		TokenGt: BinaryOpTypeGt,
		TokenLe: BinaryOpTypeLte,
		TokenGe: BinaryOpTypeGte,
	})
}

func (p *Parser) parseAdditive() (Expression, error) {
	return p.binaryLevel(p.parseMultiplicative, map[TokenType]BinaryOpType{
		TokenPlus:  BinaryOpTypeAdd,
		TokenMinus: BinaryOpTypeSub,
	})
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	return p.binaryLevel(p.parseUnary, map[TokenType]BinaryOpType{
		TokenMul: BinaryOpTypeMul,
		TokenDiv: BinaryOpTypeDiv,
	})
}

func (p *Parser) parseUnary() (Expression, error) {
	var op UnaryOpType
	switch p.current().Type {
	case TokenNot:
		op = UnaryOpTypeNot
	case TokenMinus:
		op = UnaryOpTypeNeg
	case TokenPlus:
		op = UnaryOpTypePos
	default:
		return p.parsePower()
	}
	p.advance()

	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryOpExpr{Op: op, Expr: expr}, nil
}

// parsePower binds tighter than unary minus and associates to the right: -2^2 is -4, 2^3^2 is 512
func (p *Parser) parsePower() (Expression, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	tok := p.current()
	if tok.Type != TokenPow {
		return base, nil
	}
	p.advance()

	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &BinaryOpExpr{Left: base, Op: BinaryOpTypePow, Right: exponent, Pos: tok.Pos}, nil
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, syntaxError(tok.Pos, "malformed number %q", tok.Value)
		}
		p.advance()
		return &LiteralExpr{Value: NumberValue{Val: val}}, nil
	case TokenString:
		p.advance()
		return &LiteralExpr{Value: StringValue{Val: tok.Value}}, nil
	case TokenVariable:
		p.advance()
		if !p.seen[tok.Value] {
			p.seen[tok.Value] = true
			p.variables = append(p.variables, Bracket{Raw: tok.Value, Offset: tok.Pos})
		}
		return &VariableExpr{Raw: tok.Value, Pos: tok.Pos}, nil
	case TokenIdent:
		p.advance()
		if p.current().Type == TokenLParen {
			return p.parseCall(tok)
		}

		switch strings.ToLower(tok.Value) {
		case "true":
			return &LiteralExpr{Value: BoolValue{Val: true}}, nil
		case "false":
			return &LiteralExpr{Value: BoolValue{Val: false}}, nil
		}
		return nil, syntaxError(tok.Pos, "unknown name %q, variables must be written as [%s]", tok.Value, tok.Value)
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.unexpected()
	}
}

func (p *Parser) parseCall(name Token) (Expression, error) {
	fn, ok := p.functions.Get(name.Value)
	if !ok {
		return nil, syntaxError(name.Pos, "unknown function %q", name.Value)
	}
	p.advance() // consume (

	args := []Expression{}
	for p.current().Type != TokenRParen {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		if p.current().Type == TokenComma {
			p.advance()
			if p.current().Type == TokenRParen {
				return nil, p.unexpected()
			}
		} else if p.current().Type != TokenRParen {
			return nil, p.expect(TokenComma, "',' or ')'")
		}
	}
	p.advance() // consume )

	if len(args) < fn.MinArgs || (fn.MaxArgs >= 0 && len(args) > fn.MaxArgs) {
		return nil, syntaxError(name.Pos, "%s() %s", fn.Name, fn.arity())
	}
	return &CallExpr{Name: fn.Name, Args: args, Pos: name.Pos}, nil
}
