// Package hidden marks directories and files as hidden in the way the host
// platform understands: the FILE_ATTRIBUTE_HIDDEN bit on Windows, a leading
// dot everywhere else. Callers pick an implementation once, via Default, and
// pass the Marker to whatever needs it.
package hidden

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotDotfile is returned by Dotfile.Hide for names without a leading dot.
var ErrNotDotfile = errors.New("name must start with '.' to be hidden")

// Marker hides paths and reports whether a path is hidden.
type Marker interface {
	// Hide marks an existing path as hidden.
	Hide(path string) error
	// IsHidden reports whether path is hidden.
	IsHidden(path string) (bool, error)
}

// Dotfile implements the Unix convention: a path is hidden when its base name
// starts with a dot. Hide cannot rename, so it only validates the name.
type Dotfile struct{}

// Hide returns ErrNotDotfile unless the base name of path starts with '.'.
func (Dotfile) Hide(path string) error {
	if !isDotName(path) {
		return fmt.Errorf("hide %s: %w", path, ErrNotDotfile)
	}
	return nil
}

// IsHidden reports whether the base name of path starts with '.'.
func (Dotfile) IsHidden(path string) (bool, error) {
	return isDotName(path), nil
}

func isDotName(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// MkdirHidden creates dir (and parents) if it does not exist and marks it
// hidden with m. An existing directory is left untouched and reported as not
// created. If m cannot hide the new directory, everything MkdirHidden created
// is removed again.
func MkdirHidden(m Marker, dir string) (created bool, err error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	top := firstMissing(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	if err := m.Hide(dir); err != nil {
		if rerr := os.RemoveAll(top); rerr != nil {
			return false, errors.Join(err, rerr)
		}
		return false, err
	}
	return true, nil
}

// firstMissing returns the outermost ancestor of dir (or dir itself) that
// does not exist yet.
func firstMissing(dir string) string {
	top := filepath.Clean(dir)
	for {
		parent := filepath.Dir(top)
		if parent == top {
			return top
		}
		if _, err := os.Lstat(parent); err == nil {
			return top
		}
		top = parent
	}
}
