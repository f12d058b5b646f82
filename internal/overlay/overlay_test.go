package overlay

import (
	"reflect"
	"slices"
	"testing"

	"docverse/internal/atom"
	"docverse/internal/divergence"
	"docverse/internal/tree"
)

var (
	host      = atom.Symbol{Culture: atom.Module{Package: 1}, Offset: 3}
	hashable  = atom.Symbol{Culture: atom.Module{Package: 0}, Offset: 9}
	equatable = atom.Symbol{Culture: atom.Module{Package: 0}, Offset: 4}
	local     = atom.Diacritic{Host: host, Culture: atom.Module{Package: 1, Offset: 0}}
	foreign   = atom.Diacritic{Host: host, Culture: atom.Module{Package: 0, Offset: 2}}
)

func TestSchemaCoversDivergenceFields(t *testing.T) {
	if n := reflect.TypeOf(Divergence{}).NumField(); n != len(Schema.Fields()) {
		t.Fatalf("Divergence has %d fields, schema declares %d", n, len(Schema.Fields()))
	}
}

func TestHeadAndSlot(t *testing.T) {
	table := NewTable()
	trunk := tree.Lineage{{Branch: 0, Revision: 0}}

	if !Set(table, local, Conformances, trunk, []atom.Symbol{hashable}) {
		t.Fatal("first Set did not write")
	}
	Set(table, local, Constraints, trunk, []string{"T: Hashable"})

	got, ok := Head(table, local, Conformances, trunk)
	if !ok || !slices.Equal(got, []atom.Symbol{hashable}) {
		t.Errorf("Head = %v, %v", got, ok)
	}
	if _, ok := Head(table, local, Features, trunk); ok {
		t.Error("features were never written")
	}
	if c := Slot(table, local, Constraints, 0); c.Len() != 1 {
		t.Errorf("Slot length = %d", c.Len())
	}
	if c := Slot(table, local, Constraints, 1); c != nil {
		t.Error("unwritten branch has a slot")
	}
}

func TestForkOverridesAndErosion(t *testing.T) {
	table := NewTable()
	Set(table, local, Conformances, tree.Lineage{{Branch: 0, Revision: 0}}, []atom.Symbol{hashable})

	fork := tree.Version{Branch: 0, Revision: 0}
	at := func(r tree.Revision) tree.Lineage { return tree.Lineage{{Branch: 1, Revision: r}, fork} }

	if Set(table, local, Conformances, at(0), []atom.Symbol{hashable}) {
		t.Error("inherited equal value was rewritten")
	}
	Set(table, local, Conformances, at(1), []atom.Symbol{hashable, equatable})

	if got, _ := Head(table, local, Conformances, at(0)); len(got) != 1 {
		t.Errorf("as of 1:0 = %v", got)
	}
	if got, _ := Head(table, local, Conformances, at(1)); len(got) != 2 {
		t.Errorf("as of 1:1 = %v", got)
	}

	var report divergence.Report
	table.Revert(table.Erode(1, 0), &report)
	if report.Removed != 1 {
		t.Errorf("Removed = %d, want 1", report.Removed)
	}
	if got, _ := Head(table, local, Conformances, at(1)); len(got) != 1 {
		t.Errorf("after erosion = %v", got)
	}
	if Slot(table, local, Conformances, 1) != nil {
		t.Error("override survived erosion")
	}
}

func TestDiacriticsOrderedByCulture(t *testing.T) {
	table := NewTable()
	trunk := tree.Lineage{{Branch: 0, Revision: 0}}
	Set(table, local, Features, trunk, []atom.Symbol{equatable})
	Set(table, foreign, Features, trunk, []atom.Symbol{hashable})
	Set(table, local, Constraints, trunk, []string{"T: Equatable"})

	var got []atom.Diacritic
	for d := range table.Diacritics(host) {
		got = append(got, d)
	}
	want := []atom.Diacritic{foreign, local}
	if !slices.Equal(got, want) {
		t.Errorf("Diacritics = %v, want %v", got, want)
	}
	if table.Hosts() != 1 {
		t.Errorf("Hosts = %d", table.Hosts())
	}
}
