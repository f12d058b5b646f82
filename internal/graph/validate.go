package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sourcegraph/scip/bindings/go/scip"

	"docverse/internal/errors"
)

// ValidateID checks that id is a global SCIP symbol. Local symbols have no
// identity outside the document that declares them and are rejected.
func ValidateID(id string) error {
	if id == "" {
		return errors.Errorf(errors.InvalidSymbolID, "empty symbol identifier")
	}
	if scip.IsLocalSymbol(id) {
		return errors.Errorf(errors.InvalidSymbolID, "local symbol %q has no stable identity", id)
	}
	if _, err := scip.ParseSymbol(id); err != nil {
		return errors.NewStoreError(errors.InvalidSymbolID, fmt.Sprintf("cannot decode symbol %q", id), err)
	}
	return nil
}

// PathOf derives a symbol path from the descriptors of its identifier.
func PathOf(id string) ([]string, error) {
	sym, err := scip.ParseSymbol(id)
	if err != nil {
		return nil, errors.NewStoreError(errors.InvalidSymbolID, fmt.Sprintf("cannot decode symbol %q", id), err)
	}
	path := make([]string, 0, len(sym.Descriptors))
	for _, d := range sym.Descriptors {
		switch d.Suffix {
		case scip.Descriptor_Namespace, scip.Descriptor_Parameter, scip.Descriptor_TypeParameter, scip.Descriptor_Meta:
			continue
		}
		path = append(path, d.Name)
	}
	return path, nil
}

// Validate checks one graph in isolation.
func Validate(g *Graph) error {
	if strings.TrimSpace(g.Culture) == "" {
		return errors.Errorf(errors.InvalidGraph, "graph has no culture name")
	}
	if slices.Contains(g.Dependencies, g.Culture) {
		return errors.Errorf(errors.ModuleCycle, "module %q imports itself", g.Culture)
	}

	seen := make(map[string]struct{}, len(g.Symbols))
	for i := range g.Symbols {
		s := &g.Symbols[i]
		if err := ValidateID(s.ID); err != nil {
			return err
		}
		if _, dup := seen[s.ID]; dup {
			return errors.Errorf(errors.DuplicateSymbol, "symbol %q is declared twice in %q", s.ID, g.Culture)
		}
		seen[s.ID] = struct{}{}

		domains := make(map[string]struct{}, len(s.Availability))
		for _, a := range s.Availability {
			if _, dup := domains[a.Domain]; dup {
				return errors.Errorf(errors.DuplicateAvailability,
					"symbol %q lists availability domain %q twice", s.ID, a.Domain)
			}
			domains[a.Domain] = struct{}{}
		}

		for _, r := range s.Relationships {
			if !r.Kind.Valid() {
				return errors.Errorf(errors.InvalidGraph, "symbol %q has unknown relationship kind %q", s.ID, r.Kind)
			}
			if err := ValidateID(r.Target); err != nil {
				return err
			}
			if r.Target == s.ID {
				return errors.Errorf(errors.InvalidGraph, "symbol %q relates to itself", s.ID)
			}
		}
	}

	articles := make(map[string]struct{}, len(g.Articles))
	for _, a := range g.Articles {
		if a.ID == "" {
			return errors.Errorf(errors.InvalidGraph, "article without identifier in %q", g.Culture)
		}
		if _, dup := articles[a.ID]; dup {
			return errors.Errorf(errors.InvalidGraph, "article %q is declared twice in %q", a.ID, g.Culture)
		}
		articles[a.ID] = struct{}{}
	}
	return nil
}

// ValidateBatch validates every graph of one ingestion batch and the batch as
// a whole. Cultures must be distinct and must not import each other
// cyclically, and no symbol may be declared by two cultures.
func ValidateBatch(graphs []*Graph) error {
	byCulture := make(map[string]*Graph, len(graphs))
	declaredBy := make(map[string]string)
	for _, g := range graphs {
		if err := Validate(g); err != nil {
			return err
		}
		if _, dup := byCulture[g.Culture]; dup {
			return errors.Errorf(errors.DuplicateCulture, "module %q appears twice in one batch", g.Culture)
		}
		byCulture[g.Culture] = g
		for _, s := range g.Symbols {
			if other, dup := declaredBy[s.ID]; dup {
				return errors.Errorf(errors.DuplicateSymbol, "symbol %q is declared by %q and %q", s.ID, other, g.Culture)
			}
			declaredBy[s.ID] = g.Culture
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(graphs))
	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case visiting:
			cycle := append(stack[slices.Index(stack, name):], name)
			return errors.Errorf(errors.ModuleCycle, "module import cycle: %s", strings.Join(cycle, " -> ")).
				WithDetails(cycle)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range byCulture[name].Dependencies {
			if _, local := byCulture[dep]; !local {
				continue
			}
			if err := visit(dep, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, g := range graphs {
		if err := visit(g.Culture, nil); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the graphs sorted so that every culture follows the cultures
// of the same batch it imports. The batch must be valid.
func Order(graphs []*Graph) []*Graph {
	byCulture := make(map[string]*Graph, len(graphs))
	for _, g := range graphs {
		byCulture[g.Culture] = g
	}
	ordered := make([]*Graph, 0, len(graphs))
	placed := make(map[string]bool, len(graphs))
	var place func(g *Graph)
	place = func(g *Graph) {
		if placed[g.Culture] {
			return
		}
		placed[g.Culture] = true
		for _, dep := range g.Dependencies {
			if d, ok := byCulture[dep]; ok {
				place(d)
			}
		}
		ordered = append(ordered, g)
	}
	for _, g := range graphs {
		place(g)
	}
	return ordered
}
