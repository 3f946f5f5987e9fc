// internal/tree/tree.go
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fixity/internal/exclude"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotADirectory = errors.New("not a directory")
)

// IoError describes a read failure encountered while walking a tree
type IoError struct {
	Path    string
	Message string
	Err     error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Message, e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}

// Enumerate walks root recursively and returns the slash-separated paths,
// relative to root, of every file whose name and ancestor directory names
// are not matched by f. The order of the result is unspecified.
func Enumerate(root string, f *exclude.Filter) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", root, ErrNotFound)
		}
		return nil, &IoError{Path: root, Message: "cannot access directory", Err: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotADirectory)
	}

	// WalkDir does not descend a symlinked root, so walk its target
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, &IoError{Path: root, Message: "cannot resolve directory", Err: err}
	}

	var files []string
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if path == walkRoot {
			if err != nil {
				return &IoError{Path: root, Message: "cannot read directory", Err: err}
			}
			return nil
		}

		rel, relErr := filepath.Rel(walkRoot, path)
		if relErr != nil {
			return &IoError{Path: path, Message: "cannot compute relative path", Err: relErr}
		}
		// errors name the path under root as the caller spelled it
		shown := filepath.Join(root, rel)

		if err != nil {
			return &IoError{Path: shown, Message: "cannot read directory", Err: err}
		}

		if f.Matches(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ok, err := isRegular(path, d)
		if err != nil {
			return &IoError{Path: shown, Message: "cannot stat file", Err: err}
		}
		if !ok {
			return nil
		}

		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// isRegular reports whether the entry is a regular file, following a
// symlink to see what it points at. Dangling links, directories behind
// links, devices and sockets are not hashed.
func isRegular(path string, d fs.DirEntry) (bool, error) {
	if d.Type().IsRegular() {
		return true, nil
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
