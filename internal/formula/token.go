package formula

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenVariable // [dotted.path]

	TokenEq       // = ==
	TokenNe       // != <>
	TokenLt       // <
	TokenGt       // >
	TokenLe       // <=
	TokenGe       // >=
	TokenAnd      // &&
	TokenOr       // ||
	TokenNot      // !
	TokenPlus     // +
	TokenMinus    // -
	TokenMul      // *
	TokenDiv      // /
	TokenPow      // ^
	TokenQuestion // ?
	TokenColon    // :

	TokenLParen // (
	TokenRParen // )
	TokenComma  // ,
)

type Token struct {
	Type  TokenType
	Value string
	// Pos is the byte offset of the token in the tokenized text
	Pos int
}

var variablePathRe = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

var singleCharTokens = map[byte]TokenType{
	'=': TokenEq, '<': TokenLt, '>': TokenGt, '!': TokenNot, '+': TokenPlus,
	'-': TokenMinus, '*': TokenMul, '/': TokenDiv, '^': TokenPow, '?': TokenQuestion,
	':': TokenColon, '(': TokenLParen, ')': TokenRParen, ',': TokenComma,
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// Normalize trims the whitespace an editor inserts around variables and operators. Runs of
// whitespace collapse to one space, whitespace inside [...] is removed, no space is kept after
// "(" or before ")" and ",", and the ends are trimmed. String literals are left untouched.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	var quote byte
	inBracket := false
	pendingSpace := false
	var last byte

	for i := 0; i < len(input); i++ {
		c := input[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(input) {
				i++
				b.WriteByte(input[i])
				continue
			}
			if c == quote {
				quote = 0
				last = c
			}
			continue
		}

		if isSpace(c) {
			if !inBracket {
				pendingSpace = true
			}
			continue
		}

		if pendingSpace {
			pendingSpace = false
			if b.Len() > 0 && last != '(' && c != ')' && c != ',' {
				b.WriteByte(' ')
			}
		}

		switch c {
		case '\'', '"':
			quote = c
		case '[':
			inBracket = true
		case ']':
			inBracket = false
		}
		b.WriteByte(c)
		last = c
	}
	return b.String()
}

// Span locates one bracket reference. Start and End are the byte offsets of the opening and
// one past the closing bracket; Path is the bracket content with whitespace removed.
type Span struct {
	Start int
	End   int
	Path  string
}

// VariableSpans finds the bracket references of input that lie outside string literals. It
// accepts text that does not tokenize, so stale or unnormalized formulas can still be scanned.
func VariableSpans(input string) []Span {
	var spans []Span
	for i := 0; i < len(input); i++ {
		switch c := input[i]; c {
		case '\'', '"':
			for i++; i < len(input) && input[i] != c; i++ {
				if input[i] == '\\' {
					i++
				}
			}
		case '[':
			end := strings.IndexAny(input[i+1:], "[]")
			if end < 0 {
				return spans
			}
			if input[i+1+end] == '[' {
				// restart at the inner bracket
				i += end
				continue
			}
			spans = append(spans, Span{
				Start: i,
				End:   i + end + 2,
				Path:  strings.Join(strings.Fields(input[i+1:i+1+end]), ""),
			})
			i += end + 1
		}
	}
	return spans
}

// Tokenize splits formula text into tokens. Failures are *Error values of kind SyntaxError.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	i := 0

	for i < len(input) {
		for i < len(input) && isSpace(input[i]) {
			i++
		}
		if i >= len(input) {
			break
		}

		start := i
		if i+1 < len(input) {
			two := input[i : i+2]
			var tt TokenType = -1
			switch two {
			case "==":
				tt = TokenEq
			case "!=", "<>":
				tt = TokenNe
			case "<=":
				tt = TokenLe
			case ">=":
				tt = TokenGe
			case "&&":
				tt = TokenAnd
			case "||":
				tt = TokenOr
			}
			if tt >= 0 {
				tokens = append(tokens, Token{Type: tt, Value: two, Pos: start})
				i += 2
				continue
			}
		}

		if tt, ok := singleCharTokens[input[i]]; ok {
			tokens = append(tokens, Token{Type: tt, Value: input[i : i+1], Pos: start})
			i++
			continue
		}

		switch c := input[i]; {
		case c == '[':
			end := strings.IndexAny(input[i+1:], "[]")
			if end < 0 || input[i+1+end] != ']' {
				return nil, syntaxError(start, "unterminated variable reference")
			}
			path := input[i+1 : i+1+end]
			if !variablePathRe.MatchString(path) {
				return nil, syntaxError(start, "invalid variable reference [%s]", path)
			}
			tokens = append(tokens, Token{Type: TokenVariable, Value: path, Pos: start})
			i += end + 2
		case c == ']':
			return nil, syntaxError(start, "unexpected ']'")
		case c == '\'' || c == '"':
			i++
			var sb strings.Builder
			for i < len(input) && input[i] != c {
				if input[i] == '\\' && i+1 < len(input) {
					i++
				}
				sb.WriteByte(input[i])
				i++
			}
			if i >= len(input) {
				return nil, syntaxError(start, "unterminated string")
			}
			tokens = append(tokens, Token{Type: TokenString, Value: sb.String(), Pos: start})
			i++
		case isDigit(c) || (c == '.' && i+1 < len(input) && isDigit(input[i+1])):
			for i < len(input) && isDigit(input[i]) {
				i++
			}
			if i < len(input) && input[i] == '.' {
				i++
				for i < len(input) && isDigit(input[i]) {
					i++
				}
			}
			if i < len(input) && (input[i] == '.' || isIdentStart(input[i])) {
				return nil, syntaxError(i, "malformed number")
			}
			tokens = append(tokens, Token{Type: TokenNumber, Value: input[start:i], Pos: start})
		case isIdentStart(c):
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			tokens = append(tokens, Token{Type: TokenIdent, Value: input[start:i], Pos: start})
		default:
			r, _ := utf8.DecodeRuneInString(input[i:])
			return nil, syntaxError(start, "unexpected character %q", r)
		}
	}

	tokens = append(tokens, Token{Type: TokenEOF, Pos: len(input)})
	return tokens, nil
}
