package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/formulary-dev/formulary/internal/option"
)

// Extensions lists the file suffixes recognised as product documents
var Extensions = []string{".product.yaml", ".product.yml", ".product.json"}

// IsDocument reports whether path names a product document
func IsDocument(path string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// SchemaError is returned when a document does not match the schema
type SchemaError struct {
	File   string
	Result *ValidationResult
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: document does not match the schema", e.File)
	for _, ve := range e.Result.Errors {
		fmt.Fprintf(&b, "\n  %s: %s", ve.Path, ve.Message)
	}
	return b.String()
}

// LoadFile reads, validates and decodes a product document
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	doc, err := LoadBytes(data, path)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

// LoadBytes validates and decodes a YAML or JSON document. name is used in error messages.
func LoadBytes(data []byte, name string) (*Document, error) {
	v, err := DefaultValidator()
	if err != nil {
		return nil, err
	}
	if res := v.ValidateBytes(data); !res.Valid {
		return nil, &SchemaError{File: name, Result: res}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := doc.CheckVersion(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := Check(doc.Product); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &doc, nil
}

// Check enforces what the schema cannot express: option ids are unique across the product,
// choice ids are unique within an option. Missing choice ids are generated.
func Check(p *option.Product) error {
	seen := map[int]string{}
	for _, g := range p.Groups {
		for _, o := range g.Options {
			if other, dup := seen[o.ID]; dup {
				return fmt.Errorf("option id %d is used by both %q and %q", o.ID, other, o.Name)
			}
			seen[o.ID] = o.Name

			o.EnsureChoiceIDs()
			choices := map[string]bool{}
			for _, c := range o.Choices {
				if choices[c.ID] {
					return fmt.Errorf("option %q has duplicate choice id %q", o.Name, c.ID)
				}
				choices[c.ID] = true
			}
		}
	}
	return nil
}

// LoadDir loads every product document under dir, sorted by product id. Documents that fail to
// load are skipped and reported in the returned error map.
func LoadDir(dir string) ([]*Document, map[string]error, error) {
	var docs []*Document
	failed := map[string]error{}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsDocument(path) {
			return nil
		}
		doc, err := LoadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping product document")
			failed[path] = err
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].Product.ID < docs[j].Product.ID
	})
	return docs, failed, nil
}

// Marshal encodes the document as JSON for .json paths and YAML otherwise
func Marshal(doc *Document, path string) ([]byte, error) {
	if strings.HasSuffix(path, ".json") {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return yaml.Marshal(doc)
}

// SaveFile writes the document to path
func SaveFile(doc *Document, path string) error {
	if doc.Version == "" {
		doc.Version = CurrentVersion
	}
	data, err := Marshal(doc, path)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
