package stage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/manifest"
)

// Reassemble verifies the parts listed in the manifest at manifestPath and
// joins them into dst. It returns the number of bytes written.
func Reassemble(manifestPath, dst string) (int64, error) {
	m, err := manifest.Read(manifestPath)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(manifestPath)
	if err := m.Verify(dir); err != nil {
		return 0, err
	}
	return chunker.Join(m.ChunkerParts(dir), dst)
}

// Cleanup lists what Clean removed.
type Cleanup struct {
	Archive  bool `json:"archive"`
	Manifest bool `json:"manifest"`
	Parts    int  `json:"parts"`
}

// Clean removes the archive, manifest and part files staged from source.
// The source itself is never touched.
func Clean(source string) (Cleanup, error) {
	var c Cleanup
	archivePath := archive.TargetPath(source)

	parts, err := chunker.Discover(archivePath)
	if err != nil {
		return c, err
	}
	if err := chunker.Remove(parts); err != nil {
		return c, err
	}
	c.Parts = len(parts)

	var errs []error
	c.Archive, err = removeFile(archivePath)
	errs = append(errs, err)
	c.Manifest, err = removeFile(manifest.PathFor(archivePath))
	errs = append(errs, err)
	return c, errors.Join(errs...)
}

func removeFile(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
}
