package tree

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"docverse/internal/errors"
)

// SelectorKind says how a selector picks a revision.
type SelectorKind int

const (
	// SelectHead picks the latest revision on the branch.
	SelectHead SelectorKind = iota
	// SelectRevision picks an exact revision number.
	SelectRevision
	// SelectDate picks the latest revision committed on or before a date.
	SelectDate
)

const selectorDateLayout = "2006-01-02"

// Selector names a version by branch name plus an optional revision or date.
// An empty branch name selects the default branch.
type Selector struct {
	Branch   string
	Kind     SelectorKind
	Revision Revision
	Date     time.Time
}

// ParseSelector parses "<branch>", "<branch>:<revision>" or
// "<branch>:<YYYY-MM-DD>".
func ParseSelector(s string) (Selector, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return Selector{Branch: s, Kind: SelectHead}, nil
	}
	branch, suffix := s[:i], s[i+1:]
	if n, err := strconv.ParseUint(suffix, 10, 16); err == nil {
		return Selector{Branch: branch, Kind: SelectRevision, Revision: Revision(n)}, nil
	}
	if date, err := time.Parse(selectorDateLayout, suffix); err == nil {
		return Selector{Branch: branch, Kind: SelectDate, Date: date}, nil
	}
	return Selector{}, errors.Errorf(errors.InvalidSelector, "cannot parse selector %q", s).
		WithHint(errors.GetHint(errors.InvalidSelector))
}

func (s Selector) String() string {
	switch s.Kind {
	case SelectRevision:
		return s.Branch + ":" + strconv.Itoa(int(s.Revision))
	case SelectDate:
		return s.Branch + ":" + s.Date.Format(selectorDateLayout)
	default:
		return s.Branch
	}
}

// Find resolves a selector to a committed version.
func (t *Tree) Find(sel Selector) (Version, bool) {
	b := Branch(0)
	if sel.Branch != "" {
		var ok bool
		if b, ok = t.byName[sel.Branch]; !ok {
			return Version{}, false
		}
	}
	switch sel.Kind {
	case SelectRevision:
		v := Version{Branch: b, Revision: sel.Revision}
		return v, t.Exists(v)
	case SelectDate:
		end := sel.Date.AddDate(0, 0, 1)
		revs := t.branches[b].revisions
		// Commit dates are non-decreasing along a branch.
		i := sort.Search(len(revs), func(i int) bool { return !revs[i].Date.Before(end) })
		if i == 0 {
			return Version{}, false
		}
		return Version{Branch: b, Revision: Revision(i - 1)}, true
	default:
		return t.Head(b)
	}
}
