package option

// Visibility is the mode of a conditional logic rule
type Visibility string

const (
	VisibilityShow Visibility = "show"
	VisibilityHide Visibility = "hide"
)

// Relation joins the conditions of a rule
type Relation string

const (
	RelationAnd Relation = "and"
	RelationOr  Relation = "or"
)

// Operator compares a target option's current value with a condition value
type Operator string

const (
	OpContains     Operator = "contains"
	OpNotContains  Operator = "not-contains"
	OpEmpty        Operator = "empty"
	OpNotEmpty     Operator = "not-empty"
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not-equals"
	OpGreater      Operator = "greater"
	OpLess         Operator = "less"
	OpGreaterEqual Operator = "greater-equal"
	OpLessEqual    Operator = "less-equal"
	OpDateEquals   Operator = "date-equals"
	OpDateBefore   Operator = "date-before"
	OpDateAfter    Operator = "date-after"
)

// Operators lists every known comparison operator
var Operators = []Operator{
	OpContains, OpNotContains, OpEmpty, OpNotEmpty, OpEquals, OpNotEquals, OpGreater, OpLess,
	OpGreaterEqual, OpLessEqual, OpDateEquals, OpDateBefore, OpDateAfter,
}

// Condition tests one target option
type Condition struct {
	OptionID int      `yaml:"option_id" json:"option_id" jsonschema:"required"`
	Operator Operator `yaml:"operator" json:"operator" jsonschema:"required"`
	Value    string   `yaml:"value,omitempty" json:"value,omitempty"`
}

// Rule shows or hides an option depending on the state of other options
type Rule struct {
	Visibility Visibility  `yaml:"visibility" json:"visibility"`
	Relation   Relation    `yaml:"relation" json:"relation"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
}

// Empty reports whether the rule has nothing to evaluate
func (r *Rule) Empty() bool {
	return r == nil || len(r.Conditions) == 0
}

// Targets returns the option ids the rule depends on
func (r *Rule) Targets() []int {
	if r == nil {
		return nil
	}
	ids := make([]int, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		ids = append(ids, c.OptionID)
	}
	return ids
}
