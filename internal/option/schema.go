package option

import (
	"embed"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/stoewer/go-strcase"
)

//go:embed option.go settings.go rule.go reference.go
var sources embed.FS

// NewReflector returns a JSON schema reflector for documents built from this package. Keys and
// definition names are snake_case, descriptions come from the doc comments of the types and
// the closed enums are spelled out.
func NewReflector() (*jsonschema.Reflector, error) {
	r := &jsonschema.Reflector{
		KeyNamer:                   strcase.SnakeCase,
		Mapper:                     mapEnums,
		RequiredFromJSONSchemaTags: true,
		Namer: func(t reflect.Type) string {
			return strcase.SnakeCase(t.Name())
		},
	}

	comments, err := extractComments(reflect.TypeOf(Option{}).PkgPath())
	if err != nil {
		return nil, err
	}
	r.CommentMap = comments
	return r, nil
}

func mapEnums(t reflect.Type) *jsonschema.Schema {
	switch t {
	case reflect.TypeOf(Type("")):
		return enum(Types)
	case reflect.TypeOf(PriceType("")):
		return enum([]PriceType{PriceNone, PriceFlatFee, PriceQuantityBased, PricePercentageInc, PricePercentageSub, PriceCharCount, PriceFileCount})
	case reflect.TypeOf(Operator("")):
		return enum(Operators)
	case reflect.TypeOf(Visibility("")):
		return enum([]Visibility{VisibilityShow, VisibilityHide})
	case reflect.TypeOf(Relation("")):
		return enum([]Relation{RelationAnd, RelationOr})
	case reflect.TypeOf(ReferenceKind("")):
		return enum([]ReferenceKind{KindProduct, KindOptionDirect, KindOptionSubproperty, KindCustomVariable})
	case reflect.TypeOf((*Settings)(nil)).Elem():
		// the variant depends on the option type, checked when decoding
		return &jsonschema.Schema{Type: "object"}
	}
	return nil
}

func enum[T ~string](values []T) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string"}
	for _, v := range values {
		s.Enum = append(s.Enum, string(v))
	}
	return s
}

// extractComments reads the doc comments of the exported types and fields of the embedded
// sources, keyed the way jsonschema.Reflector.CommentMap expects.
func extractComments(pkg string) (map[string]string, error) {
	comments := make(map[string]string)
	entries, err := sources.ReadDir(".")
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	for _, entry := range entries {
		src, err := sources.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		f, err := parser.ParseFile(fset, entry.Name(), src, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		pending := ""
		typ := ""
		ast.Inspect(f, func(n ast.Node) bool {
			switch x := n.(type) {
			case *ast.GenDecl:
				// a single-spec declaration carries its doc on the GenDecl
				pending = x.Doc.Text()
			case *ast.TypeSpec:
				typ = x.Name.String()
				if !ast.IsExported(typ) {
					typ = ""
					return true
				}
				txt := x.Doc.Text()
				if txt == "" {
					txt, pending = pending, ""
				}
				if txt != "" {
					comments[fmt.Sprintf("%s.%s", pkg, typ)] = strings.TrimSpace(txt)
				}
			case *ast.Field:
				txt := x.Doc.Text()
				if txt == "" {
					txt = x.Comment.Text()
				}
				if typ == "" || txt == "" {
					return true
				}
				for _, name := range x.Names {
					if ast.IsExported(name.String()) {
						comments[fmt.Sprintf("%s.%s.%s", pkg, typ, name)] = strings.TrimSpace(txt)
					}
				}
			}
			return true
		})
	}
	return comments, nil
}
