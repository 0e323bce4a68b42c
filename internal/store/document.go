// Package store loads and saves product documents: a versioned YAML or JSON file holding one
// product with its option groups, formulas and manifests.
package store

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/formulary-dev/formulary/internal/option"
)

// SupportedVersions is the range of document versions this build reads
const SupportedVersions = "^1.0"

// CurrentVersion is written into new documents
const CurrentVersion = "1.0"

// Document is one product definition file
type Document struct {
	// Version of the document format, must satisfy ^1.0
	Version string `yaml:"version" json:"version" jsonschema:"required"`
	// Product is the configurable product
	Product *option.Product `yaml:"product" json:"product" jsonschema:"required"`

	// SourceFile is the path the document was loaded from
	SourceFile string `yaml:"-" json:"-"`
}

// CheckVersion reports an error when the document version is not readable by this build
func (d *Document) CheckVersion() error {
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return fmt.Errorf("invalid document version %q: %w", d.Version, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("document version %s is not supported, expected %s", d.Version, SupportedVersions)
	}
	return nil
}
