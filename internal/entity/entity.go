// Package entity defines the values stored in versioned fields.
//
// Values are treated as immutable once written: a field change always writes a
// fresh value, never mutates one already recorded in a chain.
package entity

import (
	"slices"
	"strings"
)

// Kind represents the kind of symbol
type Kind string

const (
	KindFunction      Kind = "function"
	KindMethod        Kind = "method"
	KindClass         Kind = "class"
	KindInterface     Kind = "interface"
	KindStruct        Kind = "struct"
	KindEnum          Kind = "enum"
	KindVariable      Kind = "variable"
	KindConstant      Kind = "constant"
	KindField         Kind = "field"
	KindProperty      Kind = "property"
	KindNamespace     Kind = "namespace"
	KindTypeAlias     Kind = "typealias"
	KindTypeParameter Kind = "typeparameter"
	KindMacro         Kind = "macro"
	KindUnknown       Kind = "unknown"
)

// Availability describes when a symbol is usable on one platform domain.
type Availability struct {
	Domain      string `json:"domain" yaml:"domain"`
	Introduced  string `json:"introduced,omitempty" yaml:"introduced,omitempty"`
	Deprecated  string `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Obsoleted   string `json:"obsoleted,omitempty" yaml:"obsoleted,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// Intrinsic is the part of a symbol that does not depend on other symbols.
// A nil *Intrinsic recorded in a chain means the symbol was removed.
type Intrinsic struct {
	Kind         Kind           `json:"kind"`
	Path         []string       `json:"path"`
	Language     string         `json:"language,omitempty"`
	Availability []Availability `json:"availability,omitempty"`
}

// Name returns the last path component.
func (i *Intrinsic) Name() string {
	if len(i.Path) == 0 {
		return ""
	}
	return i.Path[len(i.Path)-1]
}

// PathString joins the path with dots.
func (i *Intrinsic) PathString() string {
	return strings.Join(i.Path, ".")
}

// EqualIntrinsic compares two nullable intrinsics.
func EqualIntrinsic(a, b *Intrinsic) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind == b.Kind &&
		a.Language == b.Language &&
		slices.Equal(a.Path, b.Path) &&
		slices.Equal(a.Availability, b.Availability)
}

// Extension is documentation: a one-paragraph card plus an optional body.
type Extension struct {
	Card string `json:"card,omitempty"`
	Body string `json:"body,omitempty"`
}

// IsEmpty reports whether the documentation has no text at all.
func (e Extension) IsEmpty() bool {
	return e.Card == "" && e.Body == ""
}

// ParseExtension splits raw documentation into its first paragraph and the
// remainder.
func ParseExtension(text string) Extension {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return Extension{}
	}
	card, body, _ := strings.Cut(text, "\n\n")
	return Extension{
		Card: strings.TrimSpace(card),
		Body: strings.TrimSpace(body),
	}
}

// EqualExtension compares two nullable extensions.
func EqualExtension(a, b *Extension) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ModuleMetadata describes one culture. A nil *ModuleMetadata recorded in a
// chain means the module was removed from its package.
type ModuleMetadata struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// EqualModuleMetadata compares two nullable module metadata values.
func EqualModuleMetadata(a, b *ModuleMetadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ArticleMetadata describes a standalone article. nil means removed.
type ArticleMetadata struct {
	Name     string `json:"name"`
	Headline string `json:"headline"`
}

// EqualArticleMetadata compares two nullable article metadata values.
func EqualArticleMetadata(a, b *ArticleMetadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
