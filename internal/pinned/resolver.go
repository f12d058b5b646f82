package pinned

import (
	"docverse/internal/atom"
)

// Upstream resolves the references of a package being ingested against its
// pinned dependencies, searched in order.
type Upstream []*Package

// Module returns the first live module called name.
func (u Upstream) Module(name string) (atom.Module, bool) {
	for _, p := range u {
		m, ok := p.volume.FindModule(name)
		if !ok {
			continue
		}
		if _, live := p.Module(m); live {
			return m, true
		}
	}
	return atom.Module{}, false
}

// Symbol returns the first live symbol with stable identifier id whose module
// is in linked.
func (u Upstream) Symbol(id string, linked atom.Linkage) (atom.Symbol, bool) {
	for _, p := range u {
		if s, _, ok := p.Find(id); ok && linked.Contains(s.Culture) {
			return s, true
		}
	}
	return atom.Symbol{}, false
}
