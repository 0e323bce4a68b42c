package option

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Settings is the type-specific configuration of an option. The concrete variant is chosen
// by the option's type tag.
type Settings interface {
	isSettings()
}

// FormulaSettings configures a price-formula option
type FormulaSettings struct {
	Formula         Formula          `yaml:"formula" json:"formula"`
	CustomVariables []CustomVariable `yaml:"custom_variables,omitempty" json:"custom_variables,omitempty"`
}

// Formula is the stored expression and the manifest resolved when it was last saved
type Formula struct {
	Expression string      `yaml:"expression" json:"expression"`
	Variables  []Reference `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// ChoiceSettings configures choice-bearing options
type ChoiceSettings struct {
	MinSelections int `yaml:"min_selections,omitempty" json:"min_selections,omitempty"`
	MaxSelections int `yaml:"max_selections,omitempty" json:"max_selections,omitempty"`
}

// TextSettings configures text and textarea options
type TextSettings struct {
	MinLength int `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty"`
}

// NumberSettings configures number and customer-price options
type NumberSettings struct {
	Min  *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max  *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Step float64  `yaml:"step,omitempty" json:"step,omitempty"`
}

// FileSettings configures file upload options
type FileSettings struct {
	MaxFiles int `yaml:"max_files,omitempty" json:"max_files,omitempty"`
}

// DateSettings configures date picker options
type DateSettings struct {
	MinDate string `yaml:"min_date,omitempty" json:"min_date,omitempty"`
	MaxDate string `yaml:"max_date,omitempty" json:"max_date,omitempty"`
}

// StaticSettings configures static content options
type StaticSettings struct {
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
}

func (*FormulaSettings) isSettings() {}
func (*ChoiceSettings) isSettings()  {}
func (*TextSettings) isSettings()    {}
func (*NumberSettings) isSettings()  {}
func (*FileSettings) isSettings()    {}
func (*DateSettings) isSettings()    {}
func (*StaticSettings) isSettings()  {}

// NewSettings returns the empty settings variant for a type tag
func NewSettings(t Type) Settings {
	switch {
	case t == TypePriceFormula:
		return &FormulaSettings{}
	case t.HasChoices():
		return &ChoiceSettings{}
	case t.IsText():
		return &TextSettings{}
	case t.IsNumeric():
		return &NumberSettings{}
	case t == TypeFileUpload:
		return &FileSettings{}
	case t == TypeDatePicker:
		return &DateSettings{}
	default:
		return &StaticSettings{}
	}
}

// UnmarshalYAML decodes the settings bag into the variant matching the type tag
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID               int       `yaml:"id"`
		Name             string    `yaml:"name"`
		Type             Type      `yaml:"type"`
		Required         bool      `yaml:"required"`
		Choices          []*Choice `yaml:"choices"`
		Settings         yaml.Node `yaml:"settings"`
		ConditionalLogic *Rule     `yaml:"conditional_logic"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if !raw.Type.Valid() {
		return fmt.Errorf("option %d: unknown type %q", raw.ID, raw.Type)
	}

	settings := NewSettings(raw.Type)
	if raw.Settings.Kind != 0 {
		if err := raw.Settings.Decode(settings); err != nil {
			return fmt.Errorf("option %d: invalid %s settings: %w", raw.ID, raw.Type, err)
		}
	}

	*o = Option{
		ID:               raw.ID,
		Name:             raw.Name,
		Type:             raw.Type,
		Required:         raw.Required,
		Choices:          raw.Choices,
		Settings:         settings,
		ConditionalLogic: raw.ConditionalLogic,
	}
	return nil
}

// UnmarshalJSON decodes the settings bag into the variant matching the type tag
func (o *Option) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID               int             `json:"id"`
		Name             string          `json:"name"`
		Type             Type            `json:"type"`
		Required         bool            `json:"required"`
		Choices          []*Choice       `json:"choices"`
		Settings         json.RawMessage `json:"settings"`
		ConditionalLogic *Rule           `json:"conditional_logic"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Type.Valid() {
		return fmt.Errorf("option %d: unknown type %q", raw.ID, raw.Type)
	}

	settings := NewSettings(raw.Type)
	if len(raw.Settings) > 0 && string(raw.Settings) != "null" {
		if err := json.Unmarshal(raw.Settings, settings); err != nil {
			return fmt.Errorf("option %d: invalid %s settings: %w", raw.ID, raw.Type, err)
		}
	}

	*o = Option{
		ID:               raw.ID,
		Name:             raw.Name,
		Type:             raw.Type,
		Required:         raw.Required,
		Choices:          raw.Choices,
		Settings:         settings,
		ConditionalLogic: raw.ConditionalLogic,
	}
	return nil
}
