// Package overlay stores the metadata one module contributes to a symbol it
// does not own: the protocols an extension conforms the host to, the features
// it adds, and the generic constraints it is declared under.
//
// An overlay has no originating object. Every write is an override on the
// writing branch, and a fork reads its parent's overlays as of the fork point
// until it writes its own.
package overlay

import (
	"iter"
	"slices"
	"sort"

	"docverse/internal/atom"
	"docverse/internal/divergence"
	"docverse/internal/tree"
)

// Divergence holds the versioned overlay fields of one diacritic on one
// branch.
type Divergence struct {
	Conformances *divergence.Chain[[]atom.Symbol]
	Features     *divergence.Chain[[]atom.Symbol]
	Constraints  *divergence.Chain[[]string]
}

// Accessor selects one field of an overlay record.
type Accessor[T any] struct {
	field divergence.Field[Divergence, T]
}

// Name returns the field name.
func (a Accessor[T]) Name() string {
	return a.field.Name()
}

var (
	Conformances = Accessor[[]atom.Symbol]{divergence.NewField("conformances",
		func(r *Divergence) **divergence.Chain[[]atom.Symbol] { return &r.Conformances },
		slices.Equal[[]atom.Symbol])}
	Features = Accessor[[]atom.Symbol]{divergence.NewField("features",
		func(r *Divergence) **divergence.Chain[[]atom.Symbol] { return &r.Features },
		slices.Equal[[]atom.Symbol])}
	Constraints = Accessor[[]string]{divergence.NewField("constraints",
		func(r *Divergence) **divergence.Chain[[]string] { return &r.Constraints },
		slices.Equal[[]string])}
)

// Schema lists every overlay field.
var Schema = divergence.NewSchema[Divergence]("overlay",
	Conformances.field, Features.field, Constraints.field)

// IsEmpty reports whether no field has a chain.
func (d *Divergence) IsEmpty() bool { return Schema.IsEmpty(d) }

// Revert truncates every chain of d to rb and reports whether d became empty.
func (d *Divergence) Revert(rb divergence.Rollbacks, report *divergence.Report) bool {
	return Schema.Revert(d, rb, report)
}

// Table holds the overlays of one package.
type Table struct {
	records   *divergence.Table[atom.Diacritic, Divergence]
	byHost    map[atom.Symbol][]atom.Module
	byCulture map[atom.Module][]atom.Diacritic
}

// NewTable creates an empty overlay table.
func NewTable() *Table {
	return &Table{
		records:   divergence.NewBaselessTable[atom.Diacritic](Schema),
		byHost:    make(map[atom.Symbol][]atom.Module),
		byCulture: make(map[atom.Module][]atom.Diacritic),
	}
}

// Head returns the value of field a for d as of the leaf of lineage.
func Head[T any](t *Table, d atom.Diacritic, a Accessor[T], lineage tree.Lineage) (T, bool) {
	return divergence.Read(t.records, d, a.field, lineage)
}

// Slot returns the chain of field a that branch itself recorded for d, or nil.
func Slot[T any](t *Table, d atom.Diacritic, a Accessor[T], branch tree.Branch) *divergence.Chain[T] {
	r, ok := t.records.Divergence(d, branch)
	if !ok {
		return nil
	}
	return a.field.Chain(r)
}

// Set writes value for field a of d at the leaf of lineage unless the lineage
// already reads an equal value. It reports whether it wrote.
func Set[T any](t *Table, d atom.Diacritic, a Accessor[T], lineage tree.Lineage, value T) bool {
	if !divergence.Update(t.records, d, a.field, lineage, value) {
		return false
	}
	t.register(d)
	return true
}

func (t *Table) register(d atom.Diacritic) {
	cultures := t.byHost[d.Host]
	i := sort.Search(len(cultures), func(i int) bool { return !less(cultures[i], d.Culture) })
	if i < len(cultures) && cultures[i] == d.Culture {
		return
	}
	t.byHost[d.Host] = slices.Insert(cultures, i, d.Culture)
	t.byCulture[d.Culture] = append(t.byCulture[d.Culture], d)
}

// Diacritics yields every diacritic ever recorded for host, ordered by
// culture. A diacritic may read as unset on a given lineage.
func (t *Table) Diacritics(host atom.Symbol) iter.Seq[atom.Diacritic] {
	return func(yield func(atom.Diacritic) bool) {
		for _, c := range t.byHost[host] {
			if !yield(atom.Diacritic{Host: host, Culture: c}) {
				return
			}
		}
	}
}

// Contributed yields every diacritic culture ever wrote, in first-write order.
func (t *Table) Contributed(culture atom.Module) iter.Seq[atom.Diacritic] {
	return slices.Values(t.byCulture[culture])
}

// Hosts returns the number of hosts with at least one overlay.
func (t *Table) Hosts() int {
	return len(t.byHost)
}

// Erode starts a rollback of branch to until.
func (t *Table) Erode(branch tree.Branch, until tree.Revision) divergence.Erosion[atom.Diacritic] {
	return t.records.Erode(branch, until)
}

// Revert completes a rollback started by Erode.
func (t *Table) Revert(e divergence.Erosion[atom.Diacritic], report *divergence.Report) {
	t.records.Revert(e, report)
}

func less(a, b atom.Module) bool {
	if a.Package != b.Package {
		return a.Package < b.Package
	}
	return a.Offset < b.Offset
}
