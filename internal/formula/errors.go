package formula

import (
	"errors"
	"fmt"
)

// ErrorKind classifies compile and evaluation failures
type ErrorKind string

const (
	KindEmptyExpression      ErrorKind = "EmptyExpression"
	KindSyntaxError          ErrorKind = "SyntaxError"
	KindUnresolvedVariable   ErrorKind = "UnresolvedVariable"
	KindForwardReference     ErrorKind = "ForwardReference"
	KindCyclicCustomVariable ErrorKind = "CyclicCustomVariable"
	KindDivisionByZero       ErrorKind = "DivisionByZero"
	KindEvaluationError      ErrorKind = "EvaluationError"
)

// Sentinels for errors.Is checks by kind
var (
	ErrEmptyExpression      = &Error{Kind: KindEmptyExpression}
	ErrSyntax               = &Error{Kind: KindSyntaxError}
	ErrUnresolvedVariable   = &Error{Kind: KindUnresolvedVariable}
	ErrForwardReference     = &Error{Kind: KindForwardReference}
	ErrCyclicCustomVariable = &Error{Kind: KindCyclicCustomVariable}
	ErrDivisionByZero       = &Error{Kind: KindDivisionByZero}
	ErrEvaluation           = &Error{Kind: KindEvaluationError}
)

// Error is a structured formula failure. Offset is a byte offset into the normalized formula
// text, or -1 when unknown.
type Error struct {
	Kind     ErrorKind
	Message  string
	Offset   int
	Variable string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Offset >= 0 && (e.Kind == KindSyntaxError || e.Kind == KindDivisionByZero) {
		return fmt.Sprintf("%s at position %d", msg, e.Offset)
	}
	return msg
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a formula error, or "" for other errors
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func syntaxError(offset int, format string, args ...any) *Error {
	return &Error{Kind: KindSyntaxError, Message: fmt.Sprintf(format, args...), Offset: offset}
}

func evalError(format string, args ...any) *Error {
	return &Error{Kind: KindEvaluationError, Message: fmt.Sprintf(format, args...), Offset: -1}
}

// UnresolvedVariable reports a bracket reference that names nothing known
func UnresolvedVariable(raw string, offset int, reason string) *Error {
	msg := fmt.Sprintf("unresolved variable [%s]", raw)
	if reason != "" {
		msg += ": " + reason
	}
	return &Error{Kind: KindUnresolvedVariable, Message: msg, Offset: offset, Variable: raw}
}

// ForwardReference reports a reference to a price formula computed later than the one being edited
func ForwardReference(raw string, offset int) *Error {
	return &Error{
		Kind:     KindForwardReference,
		Message:  fmt.Sprintf("[%s] is a price formula computed after this one", raw),
		Offset:   offset,
		Variable: raw,
	}
}

// CyclicCustomVariable reports a custom variable that depends on itself
func CyclicCustomVariable(path []string) *Error {
	name := ""
	if len(path) > 0 {
		name = path[0]
	}
	msg := "custom variable cycle: "
	for i, p := range path {
		if i > 0 {
			msg += " -> "
		}
		msg += p
	}
	return &Error{Kind: KindCyclicCustomVariable, Message: msg, Offset: -1, Variable: name}
}
