// internal/digest/digest.go
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Size is the length in bytes of a content digest
const Size = sha256.Size

// DefaultBufferSize is the read chunk used when hashing files
const DefaultBufferSize = 16 * 1024

// Entry is the digest of one file, keyed by its slash-separated path
// relative to the snapshot root.
type Entry struct {
	Path string
	Sum  [Size]byte
}

// Kind identifies why a persisted entry could not be parsed
type Kind int

const (
	InvalidColumnCount Kind = iota + 1
	InvalidHashFormat
)

// ParseError describes a malformed persisted entry
type ParseError struct {
	Kind    Kind
	Columns int    // set for InvalidColumnCount
	Value   string // set for InvalidHashFormat
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case InvalidColumnCount:
		return fmt.Sprintf("invalid column count (=%d), expected 2", e.Columns)
	case InvalidHashFormat:
		return fmt.Sprintf("invalid hash format %q", e.Value)
	default:
		return "invalid entry"
	}
}

// Parse decodes a line of the form "<path>\t<64 hex chars>".
// The path is taken verbatim; tabs inside paths cannot be represented.
func Parse(line string) (Entry, error) {
	cols := strings.Split(line, "\t")
	if len(cols) != 2 {
		return Entry{}, &ParseError{Kind: InvalidColumnCount, Columns: len(cols)}
	}

	raw, err := hex.DecodeString(cols[1])
	if err != nil || len(raw) != Size {
		return Entry{}, &ParseError{Kind: InvalidHashFormat, Value: cols[1]}
	}

	e := Entry{Path: cols[0]}
	copy(e.Sum[:], raw)
	return e, nil
}

// String returns the persisted form of the entry, without a line terminator
func (e Entry) String() string {
	return e.Path + "\t" + e.Hex()
}

// Hex returns the lowercase hex encoding of the digest
func (e Entry) Hex() string {
	return hex.EncodeToString(e.Sum[:])
}

// Compute hashes root/relPath, reading bufSize bytes at a time.
// A non-positive bufSize selects DefaultBufferSize; the chunk size never
// affects the result.
func Compute(root, relPath string, bufSize int) (Entry, error) {
	path := filepath.Join(root, filepath.FromSlash(relPath))

	sum, err := fileSum(path, bufSize)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Path: relPath, Sum: sum}, nil
}

// Sum returns the digest of data
func Sum(data []byte) [Size]byte {
	return sha256.Sum256(data)
}

func fileSum(path string, bufSize int) ([Size]byte, error) {
	var sum [Size]byte
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	f, err := os.Open(path)
	if err != nil {
		return sum, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(onlyWriter{h}, onlyReader{f}, buf); err != nil {
		return sum, fmt.Errorf("reading file: %w", err)
	}

	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// onlyReader and onlyWriter hide ReadFrom/WriteTo so CopyBuffer
// really reads through buf.
type onlyReader struct{ io.Reader }

type onlyWriter struct{ io.Writer }
