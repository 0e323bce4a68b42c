package option

// ReferenceKind classifies a resolved bracket reference
type ReferenceKind string

const (
	KindProduct           ReferenceKind = "product"
	KindOptionDirect      ReferenceKind = "option_direct"
	KindOptionSubproperty ReferenceKind = "option_choice_subproperty"
	KindCustomVariable    ReferenceKind = "custom_variable"
)

// Reference is one resolved variable of a formula. A formula's manifest is the list of its
// references; cross-references use stable ids, Raw is only the text form at save time.
type Reference struct {
	Raw      string        `yaml:"raw" json:"raw" jsonschema:"required"`
	Kind     ReferenceKind `yaml:"kind" json:"kind" jsonschema:"required"`
	OptionID int           `yaml:"option_id,omitempty" json:"option_id,omitempty"`
	// Choice is the label segment of a [option.choices.<label>.<prop>] reference
	Choice      string `yaml:"choice,omitempty" json:"choice,omitempty"`
	ChoiceID    string `yaml:"choice_id,omitempty" json:"choice_id,omitempty"`
	ChoiceIndex int    `yaml:"choice_index,omitempty" json:"choice_index,omitempty"`
	Property    string `yaml:"property,omitempty" json:"property,omitempty"`
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
}

// IsOption reports whether the reference points at an option
func (r Reference) IsOption() bool {
	return r.Kind == KindOptionDirect || r.Kind == KindOptionSubproperty
}

// IsChoice reports whether the reference addresses a single choice
func (r Reference) IsChoice() bool {
	return r.Kind == KindOptionSubproperty && r.Choice != ""
}
