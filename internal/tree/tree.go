// Package tree sequences the revisions of one package into named branches.
//
// A branch owns a gap-free list of revisions numbered from zero. A forked
// branch records the version it was forked from; its revision zero is defined
// relative to that fork point and is never renumbered, so a revision has a
// branch-local predecessor iff it is greater than zero.
package tree

import (
	"fmt"
	"iter"
	"math"
	"sort"
	"time"

	"docverse/internal/atom"
	"docverse/internal/errors"
)

// Branch is an index into a package's branch list.
type Branch uint16

// Revision is a branch-local, zero-based revision number.
type Revision uint16

// Version names one revision on one branch.
type Version struct {
	Branch   Branch
	Revision Revision
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Branch, v.Revision)
}

// RevisionInfo is recorded for every committed revision.
type RevisionInfo struct {
	Date      time.Time
	Digest    string
	Ingestion string
	Pins      map[atom.Package]Version
}

// PinOrder returns the pinned packages in registration order.
func (r RevisionInfo) PinOrder() []atom.Package {
	order := make([]atom.Package, 0, len(r.Pins))
	for p := range r.Pins {
		order = append(order, p)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order
}

type branchRecord struct {
	name      string
	fork      *Version
	revisions []RevisionInfo
}

// Tree is the branch list of one package. It is not safe for concurrent
// mutation; the owning volume serializes access.
type Tree struct {
	branches []*branchRecord
	byName   map[string]Branch
}

// New creates a tree whose branch 0 is named defaultBranch and has no
// revisions yet.
func New(defaultBranch string) *Tree {
	return &Tree{
		branches: []*branchRecord{{name: defaultBranch}},
		byName:   map[string]Branch{defaultBranch: 0},
	}
}

// Branches returns the number of branches.
func (t *Tree) Branches() int {
	return len(t.branches)
}

// Name returns the name of b.
func (t *Tree) Name(b Branch) string {
	return t.branch(b).name
}

// Lookup returns the branch called name.
func (t *Tree) Lookup(name string) (Branch, bool) {
	b, ok := t.byName[name]
	return b, ok
}

// Parent returns the version b was forked from.
func (t *Tree) Parent(b Branch) (Version, bool) {
	fork := t.branch(b).fork
	if fork == nil {
		return Version{}, false
	}
	return *fork, true
}

// Exists reports whether v names a committed revision.
func (t *Tree) Exists(v Version) bool {
	if int(v.Branch) >= len(t.branches) {
		return false
	}
	return int(v.Revision) < len(t.branches[v.Branch].revisions)
}

// Head returns the latest revision on b.
func (t *Tree) Head(b Branch) (Version, bool) {
	revs := t.branch(b).revisions
	if len(revs) == 0 {
		return Version{}, false
	}
	return Version{Branch: b, Revision: Revision(len(revs) - 1)}, true
}

// Default returns the head of the default branch.
func (t *Tree) Default() (Version, bool) {
	return t.Head(0)
}

// Record returns the record of v if it is committed.
func (t *Tree) Record(v Version) (RevisionInfo, bool) {
	if !t.Exists(v) {
		return RevisionInfo{}, false
	}
	return t.branches[v.Branch].revisions[v.Revision], true
}

// All yields every committed revision, branch by branch.
func (t *Tree) All() iter.Seq2[Version, RevisionInfo] {
	return func(yield func(Version, RevisionInfo) bool) {
		for b, br := range t.branches {
			for r, info := range br.revisions {
				if !yield(Version{Branch: Branch(b), Revision: Revision(r)}, info) {
					return
				}
			}
		}
	}
}

// Info returns the record of a committed revision.
func (t *Tree) Info(v Version) RevisionInfo {
	if !t.Exists(v) {
		panic(fmt.Sprintf("tree: version %s does not exist", v))
	}
	return t.branches[v.Branch].revisions[v.Revision]
}

// Fork creates a branch whose revision zero follows from. Forking from a
// version that does not exist is a programming error.
func (t *Tree) Fork(name string, from Version) (Branch, error) {
	if !t.Exists(from) {
		panic(fmt.Sprintf("tree: cannot fork %q from nonexistent version %s", name, from))
	}
	if _, taken := t.byName[name]; taken {
		return 0, errors.Errorf(errors.BranchExists, "branch %q already exists", name)
	}
	if len(t.branches) > math.MaxUint16 {
		panic("tree: branch indices exhausted")
	}
	fork := from
	b := Branch(len(t.branches))
	t.branches = append(t.branches, &branchRecord{name: name, fork: &fork})
	t.byName[name] = b
	return b, nil
}

// Commit appends the next revision to b.
func (t *Tree) Commit(to Branch, info RevisionInfo) Revision {
	br := t.branch(to)
	if len(br.revisions) > math.MaxUint16 {
		panic(fmt.Sprintf("tree: revisions exhausted on branch %q", br.name))
	}
	if n := len(br.revisions); n > 0 && info.Date.Before(br.revisions[n-1].Date) {
		info.Date = br.revisions[n-1].Date
	}
	br.revisions = append(br.revisions, info)
	return Revision(len(br.revisions) - 1)
}

// Erode drops every revision of b after until. The next commit on b gets
// revision until+1. Eroding is refused if a child branch was forked from a
// revision that would be dropped.
func (t *Tree) Erode(b Branch, until Revision) error {
	br := t.branch(b)
	for _, child := range t.branches {
		if child.fork != nil && child.fork.Branch == b && child.fork.Revision > until {
			return errors.Errorf(errors.ForkedBeyondRollback,
				"branch %q was forked from %s:%d", child.name, br.name, child.fork.Revision).
				WithHint(errors.GetHint(errors.ForkedBeyondRollback))
		}
	}
	if int(until)+1 < len(br.revisions) {
		clear(br.revisions[until+1:])
		br.revisions = br.revisions[:until+1]
	}
	return nil
}

// Lineage returns v followed by the fork point of every ancestor branch.
func (t *Tree) Lineage(v Version) Lineage {
	if !t.Exists(v) {
		panic(fmt.Sprintf("tree: version %s does not exist", v))
	}
	lineage := Lineage{v}
	for fork := t.branches[v.Branch].fork; fork != nil; fork = t.branches[fork.Branch].fork {
		lineage = append(lineage, *fork)
	}
	return lineage
}

func (t *Tree) branch(b Branch) *branchRecord {
	if int(b) >= len(t.branches) {
		panic(fmt.Sprintf("tree: branch %d does not exist", b))
	}
	return t.branches[b]
}

// Lineage is a version followed by the fork points of its ancestors, nearest
// first.
type Lineage []Version

// Leaf returns the version the lineage was computed for.
func (l Lineage) Leaf() Version {
	return l[0]
}
