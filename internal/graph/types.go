// Package graph defines the symbol-graph documents a package is ingested from,
// validates them, and decodes them from YAML documents or SCIP indexes.
package graph

import (
	"docverse/internal/entity"
)

// RelationshipKind names how a symbol relates to another symbol.
type RelationshipKind string

const (
	// Member: the symbol is a member of Target, which must be declared by the
	// same graph.
	Member RelationshipKind = "member"
	// Extends: the symbol inherits documentation from Target when it has none.
	Extends RelationshipKind = "extends"
	// Conformance: this graph's culture conforms the symbol to the protocol
	// Target.
	Conformance RelationshipKind = "conformance"
	// Feature: the symbol is added to the type Target by an extension declared
	// in this graph's culture.
	Feature RelationshipKind = "feature"
)

// Valid reports whether k is a known relationship kind.
func (k RelationshipKind) Valid() bool {
	switch k {
	case Member, Extends, Conformance, Feature:
		return true
	}
	return false
}

// Graph is the symbol graph of one culture (module) of a package.
type Graph struct {
	// Culture is the module name. It is unique within a package.
	Culture  string `yaml:"culture" json:"culture"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`

	// Dependencies are the names of the modules this culture imports.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	Symbols  []Symbol  `yaml:"symbols,omitempty" json:"symbols,omitempty"`
	Articles []Article `yaml:"articles,omitempty" json:"articles,omitempty"`
}

// Symbol is one declaration of a graph.
type Symbol struct {
	// ID is the stable identifier, a global SCIP symbol string.
	ID            string                `yaml:"id" json:"id"`
	Kind          entity.Kind           `yaml:"kind" json:"kind"`
	Path          []string              `yaml:"path,omitempty" json:"path,omitempty"`
	Declaration   string                `yaml:"declaration,omitempty" json:"declaration,omitempty"`
	Doc           string                `yaml:"doc,omitempty" json:"doc,omitempty"`
	Relationships []Relationship        `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Availability  []entity.Availability `yaml:"availability,omitempty" json:"availability,omitempty"`
}

// Relationship links a symbol to a target symbol by stable identifier.
type Relationship struct {
	Kind        RelationshipKind `yaml:"kind" json:"kind"`
	Target      string           `yaml:"target" json:"target"`
	Constraints []string         `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// Article is a standalone documentation page shipped with a culture.
type Article struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Headline string `yaml:"headline,omitempty" json:"headline,omitempty"`
	Body     string `yaml:"body,omitempty" json:"body,omitempty"`
}
