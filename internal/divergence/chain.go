package divergence

import (
	"fmt"
	"iter"
	"sort"

	"docverse/internal/tree"
)

// Chain is the append-only history of one field on one branch. Revisions are
// non-decreasing; a second write at the head revision replaces the head value.
//
// A nil *Chain is an empty chain.
type Chain[T any] struct {
	revisions []tree.Revision
	values    []T
}

// Len returns the number of recorded entries.
func (c *Chain[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.revisions)
}

// At returns the value of the latest entry whose revision is <= rev.
func (c *Chain[T]) At(rev tree.Revision) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	i := sort.Search(len(c.revisions), func(i int) bool { return c.revisions[i] > rev })
	if i == 0 {
		return zero, false
	}
	return c.values[i-1], true
}

// Head returns the most recent entry.
func (c *Chain[T]) Head() (tree.Revision, T, bool) {
	var zero T
	if c.Len() == 0 {
		return 0, zero, false
	}
	n := len(c.revisions) - 1
	return c.revisions[n], c.values[n], true
}

// All yields every entry, oldest first.
func (c *Chain[T]) All() iter.Seq2[tree.Revision, T] {
	return func(yield func(tree.Revision, T) bool) {
		for i := 0; i < c.Len(); i++ {
			if !yield(c.revisions[i], c.values[i]) {
				return
			}
		}
	}
}

func (c *Chain[T]) push(rev tree.Revision, value T) {
	n := len(c.revisions)
	switch {
	case n == 0 || c.revisions[n-1] < rev:
		c.revisions = append(c.revisions, rev)
		c.values = append(c.values, value)
	case c.revisions[n-1] == rev:
		c.values[n-1] = value
	default:
		panic(fmt.Sprintf("divergence: write at revision %d behind head %d", rev, c.revisions[n-1]))
	}
}

// erode drops every entry after until and reports whether anything was
// dropped.
func (c *Chain[T]) erode(until tree.Revision) bool {
	if c == nil {
		return false
	}
	i := sort.Search(len(c.revisions), func(i int) bool { return c.revisions[i] > until })
	if i == len(c.revisions) {
		return false
	}
	clear(c.values[i:])
	c.revisions = c.revisions[:i]
	c.values = c.values[:i]
	return true
}
