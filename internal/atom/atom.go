// Package atom assigns stable numeric identities to the modules, symbols and
// articles of a package.
//
// An atom is a (culture, offset) pair. Offsets are dense and allocated once, in
// order, per kind and culture; they are never reused or renumbered, so an atom
// is the only identity of an entity that survives across revisions and forks.
package atom

import (
	"fmt"
)

// Package identifies one package in the universe. Packages are numbered in
// registration order.
type Package uint32

// StandardLibrary is the reserved package of the standard library.
const StandardLibrary Package = 0

// ModuleOffset is the per-package offset of a module.
type ModuleOffset uint16

// SymbolOffset is the per-culture offset of a symbol.
type SymbolOffset uint32

// ArticleOffset is the per-culture offset of an article.
type ArticleOffset uint32

// Module is the atom of a module. A module is its own culture.
type Module struct {
	Package Package
	Offset  ModuleOffset
}

// Nationality returns the package that owns the module.
func (m Module) Nationality() Package {
	return m.Package
}

func (m Module) String() string {
	return fmt.Sprintf("%d:%d", m.Package, m.Offset)
}

// Symbol is the atom of a symbol declared by Culture.
type Symbol struct {
	Culture Module
	Offset  SymbolOffset
}

// Nationality returns the package that ultimately owns the symbol.
func (s Symbol) Nationality() Package {
	return s.Culture.Package
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s/s%d", s.Culture, s.Offset)
}

// Article is the atom of a standalone documentation article.
type Article struct {
	Culture Module
	Offset  ArticleOffset
}

// Nationality returns the package that ultimately owns the article.
func (a Article) Nationality() Package {
	return a.Culture.Package
}

func (a Article) String() string {
	return fmt.Sprintf("%s/a%d", a.Culture, a.Offset)
}

// Diacritic is a perspective on a symbol: the host symbol as extended by the
// contributing culture.
type Diacritic struct {
	Host    Symbol
	Culture Module
}

func (d Diacritic) String() string {
	return fmt.Sprintf("%s@%s", d.Host, d.Culture)
}

// Compound is a feature that only exists as a member of an extension. It has no
// atom of its own. The host of its diacritic never equals its base.
type Compound struct {
	diacritic Diacritic
	base      Symbol
}

// NewCompound returns the compound of base seen through d, or false if the
// diacritic's host is base itself.
func NewCompound(d Diacritic, base Symbol) (Compound, bool) {
	if d.Host == base {
		return Compound{}, false
	}
	return Compound{diacritic: d, base: base}, true
}

// Diacritic returns the perspective of the compound.
func (c Compound) Diacritic() Diacritic { return c.diacritic }

// Host returns the symbol the feature is a member of.
func (c Compound) Host() Symbol { return c.diacritic.Host }

// Culture returns the module contributing the feature.
func (c Compound) Culture() Module { return c.diacritic.Culture }

// Base returns the symbol providing the feature.
func (c Compound) Base() Symbol { return c.base }

// Composite is either a plain symbol or a compound.
type Composite struct {
	base      Symbol
	diacritic Diacritic
	compound  bool
}

// Plain wraps a symbol as a composite.
func Plain(s Symbol) Composite {
	return Composite{base: s}
}

// Composite wraps the compound as a composite.
func (c Compound) Composite() Composite {
	return Composite{base: c.base, diacritic: c.diacritic, compound: true}
}

// Base returns the atomic symbol at the root of the composite.
func (c Composite) Base() Symbol { return c.base }

// Compound returns the compound, if the composite is one.
func (c Composite) Compound() (Compound, bool) {
	if !c.compound {
		return Compound{}, false
	}
	return Compound{diacritic: c.diacritic, base: c.base}, true
}

func (c Composite) String() string {
	if c.compound {
		return fmt.Sprintf("%s[%s]", c.diacritic, c.base)
	}
	return c.base.String()
}

// Linkage is the set of modules visible to a build.
type Linkage map[Module]struct{}

// Link returns a linkage containing modules.
func Link(modules ...Module) Linkage {
	l := make(Linkage, len(modules))
	for _, m := range modules {
		l[m] = struct{}{}
	}
	return l
}

// Add inserts m into the linkage.
func (l Linkage) Add(m Module) {
	l[m] = struct{}{}
}

// Contains reports whether m is linked.
func (l Linkage) Contains(m Module) bool {
	_, ok := l[m]
	return ok
}
