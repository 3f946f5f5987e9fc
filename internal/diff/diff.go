// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"sort"

	"fixity/internal/snapshot"
)

// Kind classifies a path that differs between two snapshots
type Kind int

const (
	Added Kind = iota + 1
	Removed
	Modified
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Report holds three disjoint lists of paths, each in ascending order
type Report struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Stats summarizes a report
type Stats struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}

// Strategy selects the comparison algorithm
type Strategy int

const (
	// SortedMerge walks both snapshots once with two cursors
	SortedMerge Strategy = iota
	// LCS aligns the two path sequences with a longest common subsequence
	// table. It gives the same result as SortedMerge on valid snapshots at
	// quadratic cost and is kept only as a cross-check.
	LCS
)

// Engine compares snapshots
type Engine struct {
	strategy Strategy
}

// NewEngine creates a new diff engine using the given strategy
func NewEngine(strategy Strategy) *Engine {
	return &Engine{strategy: strategy}
}

// Compare classifies every path of old and new
func (e *Engine) Compare(old, new *snapshot.Snapshot) Report {
	if e.strategy == LCS {
		return compareLCS(old, new)
	}
	return compareMerge(old, new)
}

// Compare classifies every path of old and new with a sorted merge
func Compare(old, new *snapshot.Snapshot) Report {
	return compareMerge(old, new)
}

func compareMerge(old, new *snapshot.Snapshot) Report {
	var r Report
	oldIdx, newIdx := 0, 0

	for {
		switch {
		case oldIdx >= old.Len():
			for ; newIdx < new.Len(); newIdx++ {
				r.Added = append(r.Added, new.At(newIdx).Path)
			}
			return r
		case newIdx >= new.Len():
			for ; oldIdx < old.Len(); oldIdx++ {
				r.Removed = append(r.Removed, old.At(oldIdx).Path)
			}
			return r
		}

		oc, nc := old.At(oldIdx), new.At(newIdx)
		assertAscending(old, oldIdx)
		assertAscending(new, newIdx)

		switch {
		case oc.Path < nc.Path:
			r.Removed = append(r.Removed, oc.Path)
			oldIdx++
		case nc.Path < oc.Path:
			r.Added = append(r.Added, nc.Path)
			newIdx++
		default:
			if oc.Sum != nc.Sum {
				r.Modified = append(r.Modified, nc.Path)
			}
			oldIdx++
			newIdx++
		}
	}
}

// assertAscending guards the merge against a snapshot that was not built
// through the snapshot constructors.
func assertAscending(s *snapshot.Snapshot, i int) {
	if i > 0 && s.At(i-1).Path >= s.At(i).Path {
		panic(fmt.Sprintf("diff: snapshot not strictly ordered at %q", s.At(i).Path))
	}
}

// Empty reports whether nothing changed
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Stats counts the entries of each list
func (r Report) Stats() Stats {
	s := Stats{
		Added:    len(r.Added),
		Removed:  len(r.Removed),
		Modified: len(r.Modified),
	}
	s.Total = s.Added + s.Removed + s.Modified
	return s
}

// Change is a single path that differs between two snapshots
type Change struct {
	Path string
	Kind Kind
}

// Changes merges the three lists into one, ordered by path
func (r Report) Changes() []Change {
	out := make([]Change, 0, len(r.Added)+len(r.Removed)+len(r.Modified))
	for _, group := range []struct {
		kind  Kind
		paths []string
	}{{Added, r.Added}, {Removed, r.Removed}, {Modified, r.Modified}} {
		for _, p := range group.paths {
			out = append(out, Change{Path: p, Kind: group.kind})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Format returns a summary followed by the detailed path lists
func (r Report) Format() string {
	var buf bytes.Buffer
	stats := r.Stats()

	buf.WriteString("Summary:\n")
	fmt.Fprintf(&buf, "  Added files: %d\n", stats.Added)
	fmt.Fprintf(&buf, "  Removed files: %d\n", stats.Removed)
	fmt.Fprintf(&buf, "  Modified files: %d\n", stats.Modified)
	buf.WriteString("\nDetails:\n")

	for _, section := range []struct {
		title string
		paths []string
	}{
		{"[Added files]", r.Added},
		{"[Removed files]", r.Removed},
		{"[Modified files]", r.Modified},
	} {
		buf.WriteString(section.title)
		buf.WriteString("\n")
		for _, p := range section.paths {
			fmt.Fprintf(&buf, "  %q\n", p)
		}
	}

	return buf.String()
}
