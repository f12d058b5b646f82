package pinned

import (
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"

	"docverse/internal/atom"
	"docverse/internal/entity"
	"docverse/internal/errors"
	"docverse/internal/volume"
)

// Context resolves queries for one local package against its pinned
// dependencies and, when bidirectional, its pinned consumers.
type Context struct {
	local      *Package
	upstream   []*Package
	downstream []*Package
	byID       map[atom.Package]*Package
}

// NewContext builds a context. Upstream packages are searched in the order
// given, which callers keep to registration order.
func NewContext(local *Package, upstream ...*Package) *Context {
	return NewBidirectional(local, upstream, nil)
}

// NewBidirectional builds a context that can also reach the packages that
// depend on local.
func NewBidirectional(local *Package, upstream, downstream []*Package) *Context {
	c := &Context{
		local:      local,
		upstream:   slices.Clone(upstream),
		downstream: slices.Clone(downstream),
		byID:       make(map[atom.Package]*Package, 1+len(upstream)+len(downstream)),
	}
	for _, p := range downstream {
		c.byID[p.ID()] = p
	}
	for _, p := range upstream {
		c.byID[p.ID()] = p
	}
	c.byID[local.ID()] = local
	return c
}

// Local returns the local package.
func (c *Context) Local() *Package { return c.local }

// Upstream returns the pinned dependencies in search order.
func (c *Context) Upstream() []*Package { return c.upstream }

// Downstream returns the pinned consumers.
func (c *Context) Downstream() []*Package { return c.downstream }

// Package returns the pinned package with the given id.
func (c *Context) Package(id atom.Package) (*Package, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Find looks up a stable identifier in the local package first and then in
// each upstream package, returning the first live symbol whose module is in
// linked. Not finding a symbol is a normal outcome.
func (c *Context) Find(id string, linked atom.Linkage) (atom.Symbol, *entity.Intrinsic, bool) {
	if s, in, ok := c.local.Find(id); ok && linked.Contains(s.Culture) {
		return s, in, true
	}
	for _, p := range c.upstream {
		if s, in, ok := p.Find(id); ok && linked.Contains(s.Culture) {
			return s, in, true
		}
	}
	return atom.Symbol{}, nil, false
}

// Symbol returns s from whichever pinned package owns it.
func (c *Context) Symbol(s atom.Symbol) (volume.SymbolView, bool) {
	p, ok := c.byID[s.Nationality()]
	if !ok {
		return volume.SymbolView{}, false
	}
	return p.Symbol(s)
}

// Documentation returns the documentation of s. A symbol without its own
// documentation inherits it from the symbol it extends, possibly in another
// package. The walk stops when it would revisit a symbol.
func (c *Context) Documentation(s atom.Symbol) (entity.Extension, bool) {
	visited := make(map[atom.Symbol]struct{})
	for {
		if _, seen := visited[s]; seen {
			return entity.Extension{}, false
		}
		visited[s] = struct{}{}

		p, ok := c.byID[s.Nationality()]
		if !ok {
			return entity.Extension{}, false
		}
		doc, extends := p.volume.Documentation(s, p.lineage)
		if !doc.IsEmpty() {
			return doc, true
		}
		if extends == nil {
			return entity.Extension{}, false
		}
		s = *extends
	}
}

// Overlays collects what every pinned package contributes to host: the local
// package first, then upstream, then downstream.
func (c *Context) Overlays(host atom.Symbol) []volume.OverlayView {
	var out []volume.OverlayView
	out = append(out, c.local.Overlays(host)...)
	for _, p := range c.upstream {
		out = append(out, p.Overlays(host)...)
	}
	for _, p := range c.downstream {
		out = append(out, p.Overlays(host)...)
	}
	return out
}

// Disambiguation controls when an address carries a hash suffix.
type Disambiguation int

const (
	// Never omits the suffix.
	Never Disambiguation = iota
	// Minimally adds the suffix only when another symbol in the context has
	// the same address.
	Minimally
	// Always adds the suffix.
	Always
)

func (d Disambiguation) String() string {
	switch d {
	case Never:
		return "never"
	case Minimally:
		return "minimally"
	case Always:
		return "always"
	}
	return fmt.Sprintf("Disambiguation(%d)", int(d))
}

// ParseDisambiguation parses never, minimally or always.
func ParseDisambiguation(s string) (Disambiguation, error) {
	switch strings.ToLower(s) {
	case "never":
		return Never, nil
	case "minimally", "":
		return Minimally, nil
	case "always":
		return Always, nil
	}
	return 0, errors.Errorf(errors.InvalidManifest, "unknown disambiguation level %q", s)
}

// Address locates a symbol's documentation page.
type Address struct {
	Package string   `json:"package"`
	Module  string   `json:"module"`
	Path    []string `json:"path"`
	Hash    string   `json:"hash,omitempty"`
}

func (a Address) String() string {
	var b strings.Builder
	b.WriteString("/")
	b.WriteString(strings.ToLower(a.Package))
	b.WriteString("/")
	b.WriteString(strings.ToLower(a.Module))
	for _, c := range a.Path {
		b.WriteString("/")
		b.WriteString(strings.ToLower(c))
	}
	if a.Hash != "" {
		b.WriteString("-")
		b.WriteString(a.Hash)
	}
	return b.String()
}

// Address builds the address of s in the pinned package that owns it.
func (c *Context) Address(s atom.Symbol, level Disambiguation) (Address, bool) {
	return c.AddressComposite(atom.Plain(s), level)
}

// AddressComposite builds the address of a plain symbol or of a compound
// feature. A compound is addressed under its host: the host's path followed
// by the base symbol's name.
func (c *Context) AddressComposite(sym atom.Composite, level Disambiguation) (Address, bool) {
	base, ok := c.Symbol(sym.Base())
	if !ok {
		return Address{}, false
	}
	owner, path, id := base.Atom, base.Intrinsic.Path, base.ID
	if compound, ok := sym.Compound(); ok {
		host, ok := c.Symbol(compound.Host())
		if !ok {
			return Address{}, false
		}
		owner = host.Atom
		path = append(slices.Clone(host.Intrinsic.Path), base.Intrinsic.Name())
		id = host.ID + "\x00" + base.ID
	}

	p := c.byID[owner.Nationality()]
	addr := Address{
		Package: p.Name(),
		Module:  p.volume.ModuleID(owner.Culture),
		Path:    path,
	}
	switch level {
	case Always:
		addr.Hash = hash(id)
	case Minimally:
		if c.collides(addr, sym) {
			addr.Hash = hash(id)
		}
	}
	return addr, true
}

// collides reports whether a live symbol other than sym shares addr's module
// and path in any pinned package of the context.
func (c *Context) collides(addr Address, sym atom.Composite) bool {
	self, isPlain := sym.Base(), true
	if _, ok := sym.Compound(); ok {
		isPlain = false
	}
	for _, p := range c.byID {
		for _, other := range p.Named(addr.Module, addr.Path) {
			if isPlain && other == self {
				continue
			}
			return true
		}
	}
	return false
}

func hash(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
