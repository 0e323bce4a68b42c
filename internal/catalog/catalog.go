package catalog

import (
	"github.com/formulary-dev/formulary/internal/option"
)

// Sub-properties addressable with a dotted suffix
const (
	PropNone       = "none"
	PropAny        = "any"
	PropAll        = "all"
	PropCount      = "count"
	PropMin        = "min"
	PropMax        = "max"
	PropSum        = "sum"
	PropSelected   = "selected"
	PropValue      = "value"
	PropPrice      = "price"
	PropChoices    = "choices"
	PropChecked    = "checked"
	PropCharacters = "characters"
	PropWords      = "words"
	PropLines      = "lines"
	PropDaycount   = "daycount"
	PropYear       = "year"
	PropMonth      = "month"
	PropDay        = "day"
	PropWeekday    = "weekday"
)

var (
	choiceProperties = []string{PropNone, PropAny, PropAll, PropCount, PropMin, PropMax, PropSum, PropSelected, PropValue, PropPrice}
	textProperties   = []string{PropCharacters, PropWords, PropLines}
	fileProperties   = []string{PropCount}
	dateProperties   = []string{PropDaycount, PropYear, PropMonth, PropDay, PropWeekday}

	// ChoiceProperties are the suffixes of a [option.choices.<label>.<prop>] reference
	ChoiceProperties = []string{PropChecked, PropValue, PropPrice}
)

// PropertiesFor returns the single-segment suffixes an option type exposes
func PropertiesFor(t option.Type) []string {
	switch {
	case t.HasChoices():
		return choiceProperties
	case t.IsText():
		return textProperties
	case t == option.TypeFileUpload:
		return fileProperties
	case t == option.TypeDatePicker:
		return dateProperties
	}
	return nil
}

// HasProperty reports whether t exposes the suffix prop
func HasProperty(t option.Type, prop string) bool {
	for _, p := range PropertiesFor(t) {
		if p == prop {
			return true
		}
	}
	return false
}

// BareAllowed reports whether an option of type t may be referenced without a suffix
func BareAllowed(t option.Type) bool {
	switch {
	case t.HasChoices(), t.IsText(), t.IsNumeric(), t == option.TypePriceFormula:
		return true
	}
	return false
}

// Addressable reports whether formulas can reference options of type t at all
func Addressable(t option.Type) bool {
	return t != option.TypeHTML
}

// Entry is one addressable option
type Entry struct {
	Identifier string
	Option     *option.Option
	// Forward marks options that are computed after the formula being edited
	Forward bool
}

// Catalog maps canonical identifiers to options for one formula being edited
type Catalog struct {
	entries []*Entry
	index   map[string]*Entry
}

// Build creates the catalog of options visible to the formula of option editingID.
// The edited option and price formulas declared after it are marked as forward.
func Build(options []*option.Option, editingID int) *Catalog {
	c := &Catalog{index: make(map[string]*Entry, len(options))}

	after := false
	for _, o := range options {
		if !Addressable(o.Type) {
			if o.ID == editingID {
				after = true
			}
			continue
		}
		e := &Entry{
			Identifier: Identifier(o),
			Option:     o,
			Forward:    o.ID == editingID || (after && o.Type == option.TypePriceFormula),
		}
		if o.ID == editingID {
			after = true
		}
		c.entries = append(c.entries, e)
		if _, taken := c.index[e.Identifier]; !taken {
			c.index[e.Identifier] = e
		}
	}
	return c
}

// Lookup returns the first option whose identifier matches
func (c *Catalog) Lookup(identifier string) (*Entry, bool) {
	e, ok := c.index[identifier]
	return e, ok
}

// Entries returns all addressable options in declaration order
func (c *Catalog) Entries() []*Entry {
	return c.entries
}

// Variables lists every reference text the catalog can resolve, for editor autocompletion
func (c *Catalog) Variables() []string {
	var out []string
	for _, e := range c.entries {
		if e.Forward || c.index[e.Identifier] != e {
			continue
		}
		if BareAllowed(e.Option.Type) {
			out = append(out, e.Identifier)
		}
		for _, p := range PropertiesFor(e.Option.Type) {
			out = append(out, e.Identifier+"."+p)
		}
		if e.Option.Type.HasChoices() {
			for i, ch := range e.Option.Choices {
				for _, p := range ChoiceProperties {
					out = append(out, e.Identifier+"."+PropChoices+"."+ChoiceSegment(ch, i)+"."+p)
				}
			}
		}
	}
	return out
}
