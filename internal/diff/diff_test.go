package diff

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"fixity/internal/digest"
	"fixity/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(path, content string) digest.Entry {
	return digest.Entry{Path: path, Sum: digest.Sum([]byte(content))}
}

func TestCompare_Scenario(t *testing.T) {
	old := snapshot.New([]digest.Entry{
		entry("ABC", "ABC"),
		entry("DEF", "DEF"),
		entry("EFG", "EFG"),
	})
	new := snapshot.New([]digest.Entry{
		entry("DEF", "DEF0"),
		entry("EFG", "EFG"),
		entry("XYZ", "XYZ"),
	})

	for _, strategy := range []Strategy{SortedMerge, LCS} {
		r := NewEngine(strategy).Compare(old, new)
		assert.Equal(t, []string{"XYZ"}, r.Added)
		assert.Equal(t, []string{"ABC"}, r.Removed)
		assert.Equal(t, []string{"DEF"}, r.Modified)
	}
}

func TestCompare_EmptyOld(t *testing.T) {
	new := snapshot.New([]digest.Entry{entry("a", "a"), entry("b", "b"), entry("c", "c")})

	r := Compare(snapshot.Empty(), new)
	assert.Equal(t, []string{"a", "b", "c"}, r.Added)
	assert.Empty(t, r.Removed)
	assert.Empty(t, r.Modified)
}

func TestCompare_EmptyNew(t *testing.T) {
	old := snapshot.New([]digest.Entry{entry("a", "a"), entry("b", "b")})

	r := Compare(old, snapshot.Empty())
	assert.Empty(t, r.Added)
	assert.Equal(t, []string{"a", "b"}, r.Removed)
	assert.Empty(t, r.Modified)
}

func TestCompare_BothEmpty(t *testing.T) {
	assert.True(t, Compare(snapshot.Empty(), snapshot.Empty()).Empty())
}

func TestCompare_Idempotent(t *testing.T) {
	s := snapshot.New([]digest.Entry{entry("a", "a"), entry("b/c", "c"), entry("d", "")})

	r := Compare(s, s)
	assert.True(t, r.Empty())
	assert.Equal(t, Stats{}, r.Stats())
}

func randomSnapshot(rng *rand.Rand, universe []string) *snapshot.Snapshot {
	var entries []digest.Entry
	for _, p := range universe {
		if rng.Intn(3) == 0 {
			continue
		}
		entries = append(entries, entry(p, fmt.Sprint(rng.Intn(2))))
	}
	return snapshot.New(entries)
}

// Every path of either side lands in exactly one bucket, matching its
// presence and digest equality.
func TestCompare_Completeness(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	universe := make([]string, 40)
	for i := range universe {
		universe[i] = fmt.Sprintf("dir%d/file%02d", i%4, i)
	}

	for round := 0; round < 200; round++ {
		old, new := randomSnapshot(rng, universe), randomSnapshot(rng, universe)
		r := Compare(old, new)
		kinds := map[string]Kind{}
		for _, c := range r.Changes() {
			kinds[c.Path] = c.Kind
		}

		seen := map[string]int{}
		for _, list := range [][]string{r.Added, r.Removed, r.Modified} {
			assert.True(t, sort.StringsAreSorted(list))
			for _, p := range list {
				seen[p]++
			}
		}

		for _, p := range universe {
			oe, inOld := old.Lookup(p)
			ne, inNew := new.Lookup(p)

			var want Kind
			switch {
			case inOld && !inNew:
				want = Removed
			case !inOld && inNew:
				want = Added
			case inOld && inNew && oe.Sum != ne.Sum:
				want = Modified
			}
			require.Equal(t, want, kinds[p], "round %d path %s", round, p)
			if want != 0 {
				require.Equal(t, 1, seen[p], "round %d path %s", round, p)
			} else {
				require.Zero(t, seen[p])
			}
		}

		assert.Equal(t, r, NewEngine(LCS).Compare(old, new), "round %d", round)
	}
}

func TestAssertAscending_OrderedSnapshot(t *testing.T) {
	s := snapshot.New([]digest.Entry{entry("a", "a"), entry("b", "b")})
	assert.NotPanics(t, func() { assertAscending(s, 1) })
}

func TestReport_Stats(t *testing.T) {
	r := Report{Added: []string{"a", "b"}, Removed: []string{"c"}}
	assert.Equal(t, Stats{Added: 2, Removed: 1, Modified: 0, Total: 3}, r.Stats())
	assert.False(t, r.Empty())
}

func TestReport_Format(t *testing.T) {
	r := Report{
		Added:    []string{"foo/foo3.txt"},
		Removed:  []string{"foo/foo2.txt"},
		Modified: []string{"foo/foo1.txt"},
	}

	want := `Summary:
  Added files: 1
  Removed files: 1
  Modified files: 1

Details:
[Added files]
  "foo/foo3.txt"
[Removed files]
  "foo/foo2.txt"
[Modified files]
  "foo/foo1.txt"
`
	assert.Equal(t, want, r.Format())
}

func TestReport_Changes(t *testing.T) {
	r := Report{
		Added:    []string{"b/new.txt", "z.txt"},
		Removed:  []string{"a.txt"},
		Modified: []string{"b/changed.txt"},
	}

	assert.Equal(t, []Change{
		{Path: "a.txt", Kind: Removed},
		{Path: "b/changed.txt", Kind: Modified},
		{Path: "b/new.txt", Kind: Added},
		{Path: "z.txt", Kind: Added},
	}, r.Changes())
	assert.Empty(t, Report{}.Changes())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "added", Added.String())
	assert.Equal(t, "removed", Removed.String())
	assert.Equal(t, "modified", Modified.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
