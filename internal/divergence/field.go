package divergence

import (
	"docverse/internal/tree"
)

// Field is an accessor for one versioned field of record type R holding values
// of type T. The same read, write and revert paths serve every field of every
// record kind through these accessors.
type Field[R, T any] struct {
	name  string
	slot  func(*R) **Chain[T]
	equal func(a, b T) bool
}

// NewField declares a field. slot must return the address of the record's
// chain pointer for the field.
func NewField[R, T any](name string, slot func(*R) **Chain[T], equal func(a, b T) bool) Field[R, T] {
	return Field[R, T]{name: name, slot: slot, equal: equal}
}

// Name returns the field name.
func (f Field[R, T]) Name() string {
	return f.name
}

// Chain returns the chain of the field in r, which may be nil.
func (f Field[R, T]) Chain(r *R) *Chain[T] {
	return *f.slot(r)
}

// Equal compares two values of the field.
func (f Field[R, T]) Equal(a, b T) bool {
	return f.equal(a, b)
}

func (f Field[R, T]) column() column[R] {
	return column[R]{
		name: f.name,
		present: func(r *R) bool {
			return *f.slot(r) != nil
		},
		erode: func(r *R, until tree.Revision) (dropped, emptied bool) {
			slot := f.slot(r)
			if !(*slot).erode(until) {
				return false, false
			}
			if (*slot).Len() == 0 {
				*slot = nil
				return true, true
			}
			return true, false
		},
	}
}

// Column is implemented by every Field of record type R.
type Column[R any] interface {
	Name() string
	column() column[R]
}

type column[R any] struct {
	name    string
	present func(*R) bool
	erode   func(*R, tree.Revision) (dropped, emptied bool)
}

// Schema lists every versioned field of a record type. A record's emptiness
// and its reversion are both derived from the schema, so a field declared in
// the schema can never be missed by either.
type Schema[R any] struct {
	name    string
	columns []column[R]
}

// NewSchema declares the schema of record type R.
func NewSchema[R any](name string, fields ...Column[R]) *Schema[R] {
	s := &Schema[R]{name: name}
	for _, f := range fields {
		s.columns = append(s.columns, f.column())
	}
	return s
}

// Name returns the schema name.
func (s *Schema[R]) Name() string {
	return s.name
}

// Fields returns the field names in declaration order.
func (s *Schema[R]) Fields() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.name
	}
	return names
}

// IsEmpty reports whether every field of r is absent.
func (s *Schema[R]) IsEmpty(r *R) bool {
	for _, c := range s.columns {
		if c.present(r) {
			return false
		}
	}
	return true
}

// Revert truncates every chain of r to rb.Until, records what was dropped in
// report, and reports whether r is now empty.
func (s *Schema[R]) Revert(r *R, rb Rollbacks, report *Report) bool {
	for _, c := range s.columns {
		dropped, emptied := c.erode(r, rb.Until)
		if dropped && report != nil {
			report.addTruncated(s.name, c.name)
		}
		if emptied && report != nil {
			report.addEmptied(s.name, c.name)
		}
	}
	return s.IsEmpty(r)
}
