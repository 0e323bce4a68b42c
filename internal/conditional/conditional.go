// Package conditional decides whether options are visible under their show/hide rules.
package conditional

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/formulary-dev/formulary/internal/option"
)

// DiagnosticKind classifies non-fatal rule problems
type DiagnosticKind string

const (
	StaleConditionTarget DiagnosticKind = "StaleConditionTarget"
	UnsupportedOperator  DiagnosticKind = "UnsupportedOperator"
	RuleCycle            DiagnosticKind = "RuleCycle"
)

// Diagnostic reports a condition that was treated as not holding
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind" yaml:"kind"`
	OptionID int            `json:"option_id" yaml:"option_id"`
	TargetID int            `json:"target_id" yaml:"target_id"`
	Message  string         `json:"message" yaml:"message"`
}

// DateLayout is the format of date selections and date condition values
const DateLayout = "2006-01-02"

var (
	choiceOperators  = []option.Operator{option.OpEquals, option.OpNotEquals, option.OpContains, option.OpNotContains, option.OpEmpty, option.OpNotEmpty}
	textOperators    = []option.Operator{option.OpEquals, option.OpNotEquals, option.OpContains, option.OpNotContains, option.OpEmpty, option.OpNotEmpty}
	numericOperators = []option.Operator{option.OpEquals, option.OpNotEquals, option.OpGreater, option.OpLess, option.OpGreaterEqual, option.OpLessEqual, option.OpEmpty, option.OpNotEmpty}
	dateOperators    = []option.Operator{option.OpDateEquals, option.OpDateBefore, option.OpDateAfter, option.OpEmpty, option.OpNotEmpty}
	fileOperators    = []option.Operator{option.OpEmpty, option.OpNotEmpty}
)

// OperatorsFor returns the operators a condition on an option of type t may use
func OperatorsFor(t option.Type) []option.Operator {
	switch {
	case t.HasChoices():
		return choiceOperators
	case t.IsText():
		return textOperators
	case t.IsNumeric(), t == option.TypePriceFormula:
		return numericOperators
	case t == option.TypeDatePicker:
		return dateOperators
	case t == option.TypeFileUpload:
		return fileOperators
	}
	return nil
}

// Supports reports whether op applies to options of type t
func Supports(t option.Type, op option.Operator) bool {
	for _, o := range OperatorsFor(t) {
		if o == op {
			return true
		}
	}
	return false
}

// Evaluator answers visibility questions for one immutable snapshot of selections. Results
// are memoized for the lifetime of the evaluator only.
type Evaluator struct {
	options  map[int]*option.Option
	state    *option.State
	computed map[int]float64

	memo        map[int]bool
	cycle       map[int]int
	diagnostics []Diagnostic
	reported    map[string]bool
}

// NewEvaluator creates an evaluator over options and live state. computed carries the results
// of price formulas already evaluated, for conditions that target them.
func NewEvaluator(options []*option.Option, state *option.State, computed map[int]float64) *Evaluator {
	e := &Evaluator{
		options:  make(map[int]*option.Option, len(options)),
		state:    state,
		computed: computed,
		memo:     map[int]bool{},
		reported: map[string]bool{},
	}
	for _, o := range options {
		e.options[o.ID] = o
	}
	e.cycle = ruleCycles(options, e.options)
	return e
}

// ruleCycles maps every option whose rule depends on itself, directly or through other rules,
// to an identifier shared by all options on the same cycle. It is a Tarjan strongly connected
// component pass over the condition targets.
func ruleCycles(options []*option.Option, byID map[int]*option.Option) map[int]int {
	index := map[int]int{}
	low := map[int]int{}
	onStack := map[int]bool{}
	var stack []int
	cycle := map[int]int{}
	next := 0

	var connect func(id int)
	connect = func(id int) {
		index[id], low[id] = next, next
		next++
		stack = append(stack, id)
		onStack[id] = true

		selfLoop := false
		for _, t := range byID[id].ConditionalLogic.Targets() {
			if _, ok := byID[t]; !ok {
				continue
			}
			if t == id {
				selfLoop = true
			}
			if _, seen := index[t]; !seen {
				connect(t)
				low[id] = min(low[id], low[t])
			} else if onStack[t] {
				low[id] = min(low[id], index[t])
			}
		}

		if low[id] != index[id] {
			return
		}
		var members []int
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			members = append(members, top)
			if top == id {
				break
			}
		}
		if len(members) > 1 || selfLoop {
			for _, m := range members {
				cycle[m] = index[id]
			}
		}
	}

	for _, o := range options {
		if _, seen := index[o.ID]; !seen {
			connect(o.ID)
		}
	}
	return cycle
}

// onSameCycle reports whether both options sit on one rule cycle
func (e *Evaluator) onSameCycle(a, b int) bool {
	ca, ok := e.cycle[a]
	if !ok {
		return false
	}
	cb, ok := e.cycle[b]
	return ok && ca == cb
}

// IsVisible reports whether the option is shown. Options without a rule, or with a rule that
// has no conditions, are always visible. A condition whose target shares a rule cycle with the
// option never holds, whichever option on the cycle is asked first.
func (e *Evaluator) IsVisible(id int) bool {
	if v, ok := e.memo[id]; ok {
		return v
	}
	o, ok := e.options[id]
	if !ok || o.ConditionalLogic.Empty() {
		return true
	}

	holds := e.ruleHolds(o)
	visible := holds
	if o.ConditionalLogic.Visibility == option.VisibilityHide {
		visible = !holds
	}
	e.memo[id] = visible
	return visible
}

// Diagnostics returns the problems found so far
func (e *Evaluator) Diagnostics() []Diagnostic {
	return e.diagnostics
}

func (e *Evaluator) ruleHolds(o *option.Option) bool {
	rule := o.ConditionalLogic
	if rule.Relation == option.RelationOr {
		for _, c := range rule.Conditions {
			if e.conditionHolds(o, c) {
				return true
			}
		}
		return false
	}

	for _, c := range rule.Conditions {
		if !e.conditionHolds(o, c) {
			return false
		}
	}
	return true
}

func (e *Evaluator) report(kind DiagnosticKind, o *option.Option, target int, format string, args ...any) {
	key := fmt.Sprintf("%s/%d/%d", kind, o.ID, target)
	if e.reported[key] {
		return
	}
	e.reported[key] = true
	e.diagnostics = append(e.diagnostics, Diagnostic{
		Kind:     kind,
		OptionID: o.ID,
		TargetID: target,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (e *Evaluator) conditionHolds(o *option.Option, c option.Condition) bool {
	target, ok := e.options[c.OptionID]
	if !ok {
		e.report(StaleConditionTarget, o, c.OptionID, "condition on %q targets option %d which no longer exists", o.Name, c.OptionID)
		return false
	}
	if e.onSameCycle(o.ID, target.ID) {
		e.report(RuleCycle, o, target.ID, "conditions of %q depend on themselves through %q", o.Name, target.Name)
		return false
	}
	if !Supports(target.Type, c.Operator) {
		e.report(UnsupportedOperator, o, target.ID, "operator %q does not apply to %s option %q", c.Operator, target.Type, target.Name)
		return false
	}

	// a hidden target is treated as empty
	hidden := !e.IsVisible(target.ID)

	switch c.Operator {
	case option.OpEmpty:
		return hidden || e.isEmpty(target)
	case option.OpNotEmpty:
		return !hidden && !e.isEmpty(target)
	case option.OpNotEquals:
		return hidden || !e.compare(target, option.OpEquals, c.Value)
	case option.OpNotContains:
		return hidden || !e.compare(target, option.OpContains, c.Value)
	}
	if hidden {
		return false
	}
	return e.compare(target, c.Operator, c.Value)
}

func (e *Evaluator) isEmpty(target *option.Option) bool {
	sel, _ := e.state.Selection(target.ID)
	switch {
	case target.Type.HasChoices():
		return len(e.state.SelectedChoices(target)) == 0
	case target.Type.IsText():
		return strings.TrimSpace(sel.Text) == ""
	case target.Type.IsNumeric():
		return sel.Number == nil
	case target.Type == option.TypePriceFormula:
		_, ok := e.computed[target.ID]
		return !ok
	case target.Type == option.TypeDatePicker:
		_, err := time.Parse(DateLayout, sel.Date)
		return err != nil
	case target.Type == option.TypeFileUpload:
		return sel.Files <= 0
	}
	return true
}

func (e *Evaluator) compare(target *option.Option, op option.Operator, value string) bool {
	sel, _ := e.state.Selection(target.ID)

	switch {
	case target.Type.HasChoices():
		want := strings.TrimSpace(value)
		for _, ch := range e.state.SelectedChoices(target) {
			if ch.ID == want || strings.EqualFold(strings.TrimSpace(ch.Label), want) {
				return true
			}
		}
		return false

	case target.Type.IsText():
		text := strings.TrimSpace(sel.Text)
		want := strings.TrimSpace(value)
		if op == option.OpContains {
			return strings.Contains(strings.ToLower(text), strings.ToLower(want))
		}
		return strings.EqualFold(text, want)

	case target.Type.IsNumeric(), target.Type == option.TypePriceFormula:
		var current float64
		if target.Type == option.TypePriceFormula {
			v, ok := e.computed[target.ID]
			if !ok {
				return false
			}
			current = v
		} else {
			if sel.Number == nil {
				return false
			}
			current = *sel.Number
		}
		want, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return false
		}
		switch op {
		case option.OpEquals:
			return current == want
		case option.OpGreater:
			return current > want
		case option.OpLess:
			return current < want
		case option.OpGreaterEqual:
			return current >= want
		case option.OpLessEqual:
			return current <= want
		}

	case target.Type == option.TypeDatePicker:
		current, err := time.Parse(DateLayout, sel.Date)
		if err != nil {
			return false
		}
		want, err := time.Parse(DateLayout, strings.TrimSpace(value))
		if err != nil {
			return false
		}
		switch op {
		case option.OpDateEquals:
			return current.Equal(want)
		case option.OpDateBefore:
			return current.Before(want)
		case option.OpDateAfter:
			return current.After(want)
		}
	}
	return false
}
