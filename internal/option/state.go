package option

// Selection is the live input a customer gave for one option
type Selection struct {
	ChoiceIDs []string `yaml:"choice_ids,omitempty" json:"choice_ids,omitempty"`
	Text      string   `yaml:"text,omitempty" json:"text,omitempty"`
	Number    *float64 `yaml:"number,omitempty" json:"number,omitempty"`
	Files     int      `yaml:"files,omitempty" json:"files,omitempty"`
	// Date is formatted as 2006-01-02
	Date string `yaml:"date,omitempty" json:"date,omitempty"`
}

// State is an immutable snapshot of the customer's selections for a product
type State struct {
	Quantity   float64           `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Selections map[int]Selection `yaml:"selections,omitempty" json:"selections,omitempty"`
}

// Qty returns the ordered quantity, at least one
func (s *State) Qty() float64 {
	if s == nil || s.Quantity <= 0 {
		return 1
	}
	return s.Quantity
}

// Selection returns the live input for an option
func (s *State) Selection(id int) (Selection, bool) {
	if s == nil || s.Selections == nil {
		return Selection{}, false
	}
	sel, ok := s.Selections[id]
	return sel, ok
}

// SelectedChoices returns the selected choices of o in declaration order. Without live input
// the choices flagged as selected by default are used.
func (s *State) SelectedChoices(o *Option) []*Choice {
	sel, ok := s.Selection(o.ID)
	var out []*Choice
	if !ok {
		for _, c := range o.Choices {
			if c.Selected {
				out = append(out, c)
			}
		}
		return out
	}

	picked := make(map[string]bool, len(sel.ChoiceIDs))
	for _, id := range sel.ChoiceIDs {
		picked[id] = true
	}
	for _, c := range o.Choices {
		if picked[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// IsSelected reports whether the choice with the given id is selected
func (s *State) IsSelected(o *Option, choiceID string) bool {
	for _, c := range s.SelectedChoices(o) {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}
