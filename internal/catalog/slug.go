package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/formulary-dev/formulary/internal/option"
)

// Slugify derives a bracket-safe identifier from display text: diacritics are folded,
// letters lower-cased, whitespace and punctuation become underscores and anything outside
// [a-z0-9_] is dropped.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	underscore := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			underscore = false
		case r == '_' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Identifier is the canonical identifier of an option
func Identifier(o *option.Option) string {
	if id := Slugify(o.Name); id != "" {
		return id
	}
	return fmt.Sprintf("option_%d", o.ID)
}

// ChoiceSegment is the identifier segment of a choice inside [option.choices.<segment>.prop].
// Choices whose label has no usable characters are addressed by position.
func ChoiceSegment(c *option.Choice, index int) string {
	if seg := Slugify(c.Label); seg != "" {
		return seg
	}
	return fmt.Sprintf("choice%d", index)
}
