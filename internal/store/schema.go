package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/formulary-dev/formulary/internal/option"
)

// SchemaID identifies the document schema
const SchemaID = "https://formulary.dev/schemas/v1/product.json"

// Schema returns the JSON schema of product documents
func Schema() ([]byte, error) {
	r, err := option.NewReflector()
	if err != nil {
		return nil, err
	}
	s := r.Reflect(&Document{})
	s.ID = SchemaID
	return json.MarshalIndent(s, "", "  ")
}

// ValidationError is a schema violation at a location in the document
type ValidationError struct {
	Message string `json:"message" yaml:"message"`
	Path    string `json:"path" yaml:"path"`
}

// ValidationResult contains the results of schema validation
type ValidationResult struct {
	Valid  bool              `json:"valid" yaml:"valid"`
	Errors []ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Validator checks documents against the generated schema
type Validator struct {
	schema *jsonschema.Schema
}

var (
	defaultValidator     *Validator
	defaultValidatorErr  error
	defaultValidatorOnce sync.Once
)

// DefaultValidator returns a validator compiled once per process
func DefaultValidator() (*Validator, error) {
	defaultValidatorOnce.Do(func() {
		defaultValidator, defaultValidatorErr = NewValidator()
	})
	return defaultValidator, defaultValidatorErr
}

// NewValidator compiles the document schema
func NewValidator() (*Validator, error) {
	data, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(SchemaID, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile(SchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateBytes validates a YAML or JSON document
func (v *Validator) ValidateBytes(data []byte) *ValidationResult {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &ValidationResult{Errors: []ValidationError{{Message: fmt.Sprintf("YAML parsing error: %v", err), Path: "/"}}}
	}

	instance, err := toJSON(doc)
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{Message: err.Error(), Path: "/"}}}
	}

	err = v.schema.Validate(instance)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &ValidationResult{Errors: []ValidationError{{Message: err.Error(), Path: "/"}}}
	}
	return &ValidationResult{Errors: flatten(ve)}
}

// toJSON converts a decoded YAML tree into the value space the schema validator expects
func toJSON(doc any) (any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("document cannot be represented as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// flatten keeps the leaf causes, which carry the specific messages
func flatten(err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) == 0 {
		path := err.InstanceLocation
		if path == "" {
			path = "/"
		}
		return []ValidationError{{Message: err.Message, Path: path}}
	}

	var out []ValidationError
	for _, cause := range err.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}
