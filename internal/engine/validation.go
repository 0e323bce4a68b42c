package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/formulary-dev/formulary/internal/conditional"
	"github.com/formulary-dev/formulary/internal/option"
)

// InputValidationError represents a problem with the customer's input for one option
type InputValidationError struct {
	OptionID int    `json:"option_id" yaml:"option_id"`
	Option   string `json:"option" yaml:"option"`
	Message  string `json:"message" yaml:"message"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Error implements the error interface
func (e *InputValidationError) Error() string {
	return fmt.Sprintf("option '%s': %s", e.Option, e.Message)
}

// InputValidationResult holds the results of input validation
type InputValidationResult struct {
	Valid  bool                    `json:"valid" yaml:"valid"`
	Errors []*InputValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// AddError adds a validation error
func (r *InputValidationResult) AddError(o *option.Option, message string, value any) {
	r.Valid = false
	r.Errors = append(r.Errors, &InputValidationError{
		OptionID: o.ID,
		Option:   o.Name,
		Message:  message,
		Value:    value,
	})
}

// HasInput reports whether the customer gave any input for the option
func HasInput(o *option.Option, state *option.State) bool {
	sel, _ := state.Selection(o.ID)
	switch {
	case o.Type.HasChoices():
		return len(state.SelectedChoices(o)) > 0
	case o.Type.IsText():
		return strings.TrimSpace(sel.Text) != ""
	case o.Type.IsNumeric():
		return sel.Number != nil
	case o.Type == option.TypeFileUpload:
		return sel.Files > 0
	case o.Type == option.TypeDatePicker:
		return sel.Date != ""
	}
	return true
}

// ValidateInput checks requiredness and settings constraints of the visible options. Hidden
// options are never validated.
func ValidateInput(options []*option.Option, state *option.State, visible func(id int) bool) *InputValidationResult {
	result := &InputValidationResult{Valid: true}

	for _, o := range options {
		if visible != nil && !visible(o.ID) {
			continue
		}
		if !HasInput(o, state) {
			if o.Required {
				result.AddError(o, "required field is missing", nil)
			}
			continue
		}
		validateConstraints(result, o, state)
	}
	return result
}

func validateConstraints(result *InputValidationResult, o *option.Option, state *option.State) {
	sel, _ := state.Selection(o.ID)

	switch s := o.Settings.(type) {
	case *option.ChoiceSettings:
		n := len(state.SelectedChoices(o))
		if s.MinSelections > 0 && n < s.MinSelections {
			result.AddError(o, fmt.Sprintf("select at least %d choices", s.MinSelections), n)
		}
		if s.MaxSelections > 0 && n > s.MaxSelections {
			result.AddError(o, fmt.Sprintf("select at most %d choices", s.MaxSelections), n)
		}
		for _, id := range sel.ChoiceIDs {
			if c, _ := o.Choice(id); c == nil {
				result.AddError(o, "unknown choice", id)
			}
		}
	case *option.TextSettings:
		n := utf8.RuneCountInString(sel.Text)
		if s.MinLength > 0 && n < s.MinLength {
			result.AddError(o, fmt.Sprintf("must be at least %d characters", s.MinLength), n)
		}
		if s.MaxLength > 0 && n > s.MaxLength {
			result.AddError(o, fmt.Sprintf("must be at most %d characters", s.MaxLength), n)
		}
	case *option.NumberSettings:
		v := *sel.Number
		if s.Min != nil && v < *s.Min {
			result.AddError(o, fmt.Sprintf("must be at least %g", *s.Min), v)
		}
		if s.Max != nil && v > *s.Max {
			result.AddError(o, fmt.Sprintf("must be at most %g", *s.Max), v)
		}
	case *option.FileSettings:
		if s.MaxFiles > 0 && sel.Files > s.MaxFiles {
			result.AddError(o, fmt.Sprintf("at most %d files", s.MaxFiles), sel.Files)
		}
	case *option.DateSettings:
		d, err := time.Parse(conditional.DateLayout, sel.Date)
		if err != nil {
			result.AddError(o, "date must be formatted as YYYY-MM-DD", sel.Date)
			return
		}
		if minDate, err := time.Parse(conditional.DateLayout, s.MinDate); err == nil && d.Before(minDate) {
			result.AddError(o, "date is before "+s.MinDate, sel.Date)
		}
		if maxDate, err := time.Parse(conditional.DateLayout, s.MaxDate); err == nil && d.After(maxDate) {
			result.AddError(o, "date is after "+s.MaxDate, sel.Date)
		}
	}
}
