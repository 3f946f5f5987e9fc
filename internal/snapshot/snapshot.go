// internal/snapshot/snapshot.go
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"fixity/internal/digest"
)

var (
	ErrUnsorted  = errors.New("entries out of order")
	ErrDuplicate = errors.New("duplicate path")
)

// MaxLineSize bounds a single line of a persisted snapshot
const MaxLineSize = 1024 * 1024

// Snapshot is an immutable list of digest entries sorted by path with
// no duplicates.
type Snapshot struct {
	entries []digest.Entry
}

// LoadError pinpoints the line of a persisted snapshot that could not be read
type LoadError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s(%d): %v '%s'", e.Source, e.Line, e.Err, e.Text)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Empty returns a snapshot with no entries
func Empty() *Snapshot {
	return &Snapshot{}
}

// New builds a snapshot from entries in any order. Duplicate paths are a
// programming error and panic.
func New(entries []digest.Entry) *Snapshot {
	sorted := make([]digest.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Path == sorted[i].Path {
			panic(fmt.Sprintf("snapshot: duplicate path %q", sorted[i].Path))
		}
	}
	return &Snapshot{entries: sorted}
}

// Load reads a persisted snapshot. source names the input in errors.
// Nothing is returned unless every line parses and the paths are strictly
// increasing.
func Load(r io.Reader, source string) (*Snapshot, error) {
	var entries []digest.Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		e, err := digest.Parse(line)
		if err != nil {
			return nil, &LoadError{Source: source, Line: lineNo, Text: line, Err: err}
		}
		if n := len(entries); n > 0 {
			switch prev := entries[n-1].Path; {
			case prev == e.Path:
				return nil, &LoadError{Source: source, Line: lineNo, Text: line, Err: ErrDuplicate}
			case prev > e.Path:
				return nil, &LoadError{Source: source, Line: lineNo, Text: line, Err: ErrUnsorted}
			}
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &LoadError{Source: source, Line: lineNo + 1, Err: fmt.Errorf("%w (limit %d bytes)", err, MaxLineSize)}
		}
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	return &Snapshot{entries: entries}, nil
}

// LoadFile reads the persisted snapshot at path
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	return Load(f, path)
}

// LoadFileOrEmpty is LoadFile, except a missing file yields an empty snapshot
func LoadFileOrEmpty(path string) (*Snapshot, error) {
	s, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	return s, err
}

// Save writes one line per entry in stored order
func (s *Snapshot) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, e := range s.entries {
		if _, err := bw.WriteString(e.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SaveFile writes the snapshot to path atomically: the content goes to a
// temporary file in the same directory which then replaces path.
func (s *Snapshot) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := s.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Len returns the number of entries
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// At returns the i-th entry in path order
func (s *Snapshot) At(i int) digest.Entry {
	return s.entries[i]
}

// Entries returns a copy of the entries in path order
func (s *Snapshot) Entries() []digest.Entry {
	out := make([]digest.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Paths returns every path in stored order
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Path
	}
	return out
}

// Lookup finds the entry for path by binary search
func (s *Snapshot) Lookup(path string) (digest.Entry, bool) {
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].Path >= path })
	if i < len(s.entries) && s.entries[i].Path == path {
		return s.entries[i], true
	}
	return digest.Entry{}, false
}
