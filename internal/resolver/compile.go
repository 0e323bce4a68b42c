package resolver

import (
	"fmt"
	"strings"

	"github.com/formulary-dev/formulary/internal/catalog"
	"github.com/formulary-dev/formulary/internal/formula"
	"github.com/formulary-dev/formulary/internal/option"
)

// Compiled is a fully resolved formula ready for evaluation
type Compiled struct {
	Main *formula.Tree
	// Manifest holds the main formula's references followed by those only custom variables use
	Manifest []option.Reference
	Program  *formula.Program
}

// Compile parses the main formula and its custom variables, rejects custom variable cycles and
// resolves every reference. The first failure is returned.
func Compile(text string, custom []option.CustomVariable, cat *catalog.Catalog) (*Compiled, error) {
	main, err := formula.Parse(text)
	if err != nil {
		return nil, err
	}

	r := New(cat, custom)
	trees := make(map[string]*formula.Tree, len(custom))
	order := make([]string, 0, len(custom))
	for i, cv := range custom {
		name := catalog.Slugify(cv.Name)
		if name == "" {
			return nil, &formula.Error{
				Kind:    formula.KindSyntaxError,
				Message: fmt.Sprintf("custom variable #%d has no usable name", i+1),
				Offset:  -1,
			}
		}
		if _, dup := trees[name]; dup {
			continue
		}
		tree, err := formula.Parse(cv.Formula)
		if err != nil {
			return nil, fmt.Errorf("custom variable %s: %w", name, err)
		}
		trees[name] = tree
		order = append(order, name)
	}

	if err := CheckCustomVariables(trees, r.IsCustom); err != nil {
		return nil, err
	}

	manifest, err := r.Resolve(main)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(manifest))
	for _, ref := range manifest {
		seen[ref.Raw] = true
	}
	for _, name := range order {
		refs, err := r.Resolve(trees[name])
		if err != nil {
			return nil, fmt.Errorf("custom variable %s: %w", name, err)
		}
		for _, ref := range refs {
			if !seen[ref.Raw] {
				seen[ref.Raw] = true
				manifest = append(manifest, ref)
			}
		}
	}

	// custom trees are looked up by the exact bracket text that names them
	programCustom := map[string]*formula.Tree{}
	for _, ref := range manifest {
		if ref.Kind == option.KindCustomVariable {
			programCustom[ref.Raw] = trees[strings.ToLower(ref.Raw)]
		}
	}

	return &Compiled{
		Main:     main,
		Manifest: manifest,
		Program:  formula.NewProgram(main, programCustom),
	}, nil
}
