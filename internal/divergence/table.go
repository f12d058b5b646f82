package divergence

import (
	"fmt"
	"iter"

	"docverse/internal/tree"
)

type origin[R any] struct {
	branch tree.Branch
	record R
}

type stamp[K comparable] struct {
	revision tree.Revision
	key      K
}

// Table stores the divergence records of one entity kind, keyed by atom.
//
// A based table keeps an origin record per key holding the OriginalHead
// chains on the branch the key was first written on. A baseless table has no
// origins: every write is an override on the writing branch.
type Table[K comparable, R any] struct {
	schema   *Schema[R]
	based    bool
	origins  map[K]*origin[R]
	diverged map[tree.Branch]map[K]*R
	journal  map[tree.Branch][]stamp[K]
}

// NewTable creates a table whose keys have an originating branch.
func NewTable[K comparable, R any](schema *Schema[R]) *Table[K, R] {
	return &Table[K, R]{
		schema:   schema,
		based:    true,
		origins:  make(map[K]*origin[R]),
		diverged: make(map[tree.Branch]map[K]*R),
		journal:  make(map[tree.Branch][]stamp[K]),
	}
}

// NewBaselessTable creates a table made only of per-branch override records.
func NewBaselessTable[K comparable, R any](schema *Schema[R]) *Table[K, R] {
	t := NewTable[K](schema)
	t.based = false
	return t
}

// Schema returns the record schema of the table.
func (t *Table[K, R]) Schema() *Schema[R] {
	return t.schema
}

// Origin returns the branch k was first written on.
func (t *Table[K, R]) Origin(k K) (tree.Branch, bool) {
	o, ok := t.origins[k]
	if !ok {
		return 0, false
	}
	return o.branch, true
}

// Divergence returns the override record of k on branch, if one exists.
func (t *Table[K, R]) Divergence(k K, branch tree.Branch) (*R, bool) {
	d, ok := t.diverged[branch][k]
	return d, ok
}

// Diverged returns the number of override records on branch.
func (t *Table[K, R]) Diverged(branch tree.Branch) int {
	return len(t.diverged[branch])
}

// Record returns the record holding k's own chains on branch: the origin
// record on the originating branch, otherwise the override record.
func (t *Table[K, R]) Record(k K, branch tree.Branch) (*R, bool) {
	if o, ok := t.origins[k]; ok && o.branch == branch {
		return &o.record, true
	}
	return t.Divergence(k, branch)
}

func (t *Table[K, R]) writable(k K, branch tree.Branch) *R {
	if t.based {
		o, ok := t.origins[k]
		if !ok {
			o = &origin[R]{branch: branch}
			t.origins[k] = o
		}
		if o.branch == branch {
			return &o.record
		}
	}
	records, ok := t.diverged[branch]
	if !ok {
		records = make(map[K]*R)
		t.diverged[branch] = records
	}
	d, ok := records[k]
	if !ok {
		d = new(R)
		records[k] = d
	}
	return d
}

// Write records value for field f of k at version at.
func Write[K comparable, R, T any](t *Table[K, R], k K, f Field[R, T], at tree.Version, value T) {
	r := t.writable(k, at.Branch)
	slot := f.slot(r)
	if *slot == nil {
		*slot = &Chain[T]{}
	}
	(*slot).push(at.Revision, value)

	journal := t.journal[at.Branch]
	if n := len(journal); n == 0 || journal[n-1] != (stamp[K]{at.Revision, k}) {
		t.journal[at.Branch] = append(journal, stamp[K]{at.Revision, k})
	}
}

// Update writes value only if it differs from what the field reads as of
// at's lineage, and reports whether it wrote.
func Update[K comparable, R, T any](t *Table[K, R], k K, f Field[R, T], lineage tree.Lineage, value T) bool {
	if current, ok := Read(t, k, f, lineage); ok && f.equal(current, value) {
		return false
	}
	Write(t, k, f, lineage.Leaf(), value)
	return true
}

// Read returns the value of field f of k as of the leaf of lineage.
//
// The walk visits the leaf version and then each ancestor's fork point. On each
// branch an override entry at or before the visited revision wins; reaching the
// originating branch consults the OriginalHead instead.
func Read[K comparable, R, T any](t *Table[K, R], k K, f Field[R, T], lineage tree.Lineage) (T, bool) {
	o := t.origins[k]
	for _, v := range lineage {
		if o != nil && o.branch == v.Branch {
			if value, ok := f.Chain(&o.record).At(v.Revision); ok {
				return value, true
			}
			continue
		}
		if d, ok := t.diverged[v.Branch][k]; ok {
			if value, ok := f.Chain(d).At(v.Revision); ok {
				return value, true
			}
		}
	}
	var zero T
	return zero, false
}

// History yields the entries of k's own chain for f on branch.
func History[K comparable, R, T any](t *Table[K, R], k K, f Field[R, T], branch tree.Branch) iter.Seq2[tree.Revision, T] {
	r, ok := t.Record(k, branch)
	if !ok {
		return func(func(tree.Revision, T) bool) {}
	}
	return f.Chain(r).All()
}

// Rollbacks is the token produced by eroding a branch. Each touched record
// reverts itself to it.
type Rollbacks struct {
	Branch tree.Branch
	Until  tree.Revision
}

// Erosion is the set of keys of one table touched by a rollback.
type Erosion[K comparable] struct {
	Rollbacks
	Keys []K
}

// Erode truncates the write journal of branch after until and returns the
// keys written after it. Only those keys need reverting.
func (t *Table[K, R]) Erode(branch tree.Branch, until tree.Revision) Erosion[K] {
	e := Erosion[K]{Rollbacks: Rollbacks{Branch: branch, Until: until}}
	journal := t.journal[branch]
	seen := make(map[K]struct{})
	i := len(journal)
	for i > 0 && journal[i-1].revision > until {
		i--
		k := journal[i].key
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			e.Keys = append(e.Keys, k)
		}
	}
	if i < len(journal) {
		clear(journal[i:])
		t.journal[branch] = journal[:i]
	}
	return e
}

// Revert reverts every record touched by e and removes override records that
// became empty.
func (t *Table[K, R]) Revert(e Erosion[K], report *Report) {
	for _, k := range e.Keys {
		if o, ok := t.origins[k]; ok && o.branch == e.Branch {
			t.schema.Revert(&o.record, e.Rollbacks, report)
			continue
		}
		records := t.diverged[e.Branch]
		d, ok := records[k]
		if !ok {
			panic(fmt.Sprintf("divergence: journaled key %v has no record on branch %d", k, e.Branch))
		}
		if t.schema.Revert(d, e.Rollbacks, report) {
			delete(records, k)
			if report != nil {
				report.Removed++
			}
		}
	}
}

// Report summarizes what a rollback changed.
type Report struct {
	Truncated map[string]int `json:"truncated,omitempty"`
	Emptied   map[string]int `json:"emptied,omitempty"`
	Removed   int            `json:"removed"`
}

func (r *Report) addTruncated(schema, field string) {
	if r.Truncated == nil {
		r.Truncated = make(map[string]int)
	}
	r.Truncated[schema+"."+field]++
}

func (r *Report) addEmptied(schema, field string) {
	if r.Emptied == nil {
		r.Emptied = make(map[string]int)
	}
	r.Emptied[schema+"."+field]++
}
