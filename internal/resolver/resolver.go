// Package resolver classifies the bracket references of a formula against the options of a
// group, custom variables and product properties, producing the variable manifest.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
)

// Product properties every formula can reference
const (
	ProductPrice  = "product_price"
	ProductWeight = "product_weight"
	ProductLength = "product_length"
	ProductWidth  = "product_width"
	ProductHeight = "product_height"
	Quantity      = "quantity"
)

// ProductProperties lists the product namespace
var ProductProperties = []string{ProductPrice, ProductWeight, ProductLength, ProductWidth, ProductHeight, Quantity}

func isProductProperty(name string) bool {
	for _, p := range ProductProperties {
		if p == name {
			return true
		}
	}
	return false
}

// Resolver resolves references for the formula of one option
type Resolver struct {
	catalog *catalog.Catalog
	custom  map[string]bool
}

// New creates a resolver. Custom variables are addressed by the slug of their name.
func New(cat *catalog.Catalog, custom []option.CustomVariable) *Resolver {
	r := &Resolver{catalog: cat, custom: map[string]bool{}}
	for _, cv := range custom {
		if name := catalog.Slugify(cv.Name); name != "" {
			r.custom[name] = true
		}
	}
	return r
}

// Resolve classifies every bracket of the tree, in order of first appearance
func (r *Resolver) Resolve(tree *formula.Tree) ([]option.Reference, error) {
	refs := make([]option.Reference, 0, len(tree.Variables))
	for _, b := range tree.Variables {
		ref, err := r.resolve(b.Raw, b.Offset)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// IsCustom reports whether a bracket refers to a custom variable rather than an option
func (r *Resolver) IsCustom(raw string) bool {
	head := strings.ToLower(raw)
	if _, ok := r.catalog.Lookup(head); ok {
		return false
	}
	return r.custom[head]
}

func (r *Resolver) resolve(raw string, offset int) (option.Reference, error) {
	segments := strings.Split(strings.ToLower(raw), ".")
	head, rest := segments[0], segments[1:]

	if entry, ok := r.catalog.Lookup(head); ok {
		if entry.Forward {
			return option.Reference{}, formula.ForwardReference(raw, offset)
		}
		return resolveOption(raw, offset, entry, rest)
	}

	if r.custom[head] {
		if len(rest) > 0 {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset, "custom variables have no sub-properties")
		}
		return option.Reference{Raw: raw, Kind: option.KindCustomVariable, Name: head}, nil
	}

	if isProductProperty(head) {
		if len(rest) > 0 {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset, "product properties have no sub-properties")
		}
		return option.Reference{Raw: raw, Kind: option.KindProduct, Name: head}, nil
	}

	return option.Reference{}, formula.UnresolvedVariable(raw, offset, fmt.Sprintf("no option, custom variable or product property named %q", head))
}

func resolveOption(raw string, offset int, entry *catalog.Entry, rest []string) (option.Reference, error) {
	o := entry.Option
	ref := option.Reference{Raw: raw, Kind: option.KindOptionDirect, OptionID: o.ID}

	if len(rest) == 0 {
		if !catalog.BareAllowed(o.Type) {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset,
				fmt.Sprintf("%s options must be referenced with a sub-property: %s", o.Type, strings.Join(catalog.PropertiesFor(o.Type), ", ")))
		}
		return ref, nil
	}

	ref.Kind = option.KindOptionSubproperty
	if rest[0] == catalog.PropChoices {
		if !o.Type.HasChoices() {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset, fmt.Sprintf("%s options have no choices", o.Type))
		}
		if len(rest) != 3 {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset, "choice references take the form option.choices.<label>.<property>")
		}
		index := -1
		for i, c := range o.Choices {
			if catalog.ChoiceSegment(c, i) == rest[1] {
				index = i
				break
			}
		}
		if index < 0 {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset, fmt.Sprintf("%s has no choice %q", entry.Identifier, rest[1]))
		}
		if !contains(catalog.ChoiceProperties, rest[2]) {
			return option.Reference{}, formula.UnresolvedVariable(raw, offset,
				fmt.Sprintf("unknown choice property %q, expected one of %s", rest[2], strings.Join(catalog.ChoiceProperties, ", ")))
		}
		ref.Choice = rest[1]
		ref.ChoiceID = o.Choices[index].ID
		ref.ChoiceIndex = index
		ref.Property = rest[2]
		return ref, nil
	}

	if len(rest) != 1 || !catalog.HasProperty(o.Type, rest[0]) {
		props := catalog.PropertiesFor(o.Type)
		reason := fmt.Sprintf("%s options have no sub-properties", o.Type)
		if len(props) > 0 {
			reason = fmt.Sprintf("unknown sub-property %q of %s option, expected one of %s", strings.Join(rest, "."), o.Type, strings.Join(props, ", "))
		}
		return option.Reference{}, formula.UnresolvedVariable(raw, offset, reason)
	}
	ref.Property = rest[0]
	return ref, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CheckCustomVariables rejects custom variables that depend on themselves, directly or through
// other custom variables. trees is keyed by custom variable name; edges are bracket references
// to other keys.
func CheckCustomVariables(trees map[string]*formula.Tree, isCustom func(raw string) bool) error {
	names := make([]string, 0, len(trees))
	for name := range trees {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(trees))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return formula.CyclicCustomVariable(cycle)
		case done:
			return nil
		}

		state[name] = visiting
		path = append(path, name)
		for _, raw := range trees[name].Raws() {
			dep := strings.ToLower(raw)
			if _, ok := trees[dep]; !ok || !isCustom(raw) {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
