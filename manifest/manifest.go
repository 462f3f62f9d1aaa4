// Package manifest records the outcome of a staging run next to its parts:
// which archive was split, into which parts, and the xxhash64 of each part.
//
// The manifest lets a receiver check a set of parts before joining them.
// Paths inside a manifest are base names relative to the manifest directory.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/iox"
)

// Suffix is appended to the archive path to name its manifest.
const Suffix = ".manifest.json"

// FormatVersion is the manifest schema version.
const FormatVersion = 1

// ErrMismatch is returned by Verify when a part on disk differs from the manifest.
var ErrMismatch = errors.New("part does not match manifest")

// Manifest describes one staged archive and its parts.
type Manifest struct {
	Version      int       `json:"version"`
	StagingID    string    `json:"staging_id"`
	CreatedAt    time.Time `json:"created_at"`
	Archive      string    `json:"archive"`
	Entry        string    `json:"entry"`
	ArchiveSize  int64     `json:"archive_size"`
	MaxPartBytes int64     `json:"max_part_bytes"`
	Parts        []Part    `json:"parts"`
}

// Part is one manifest line.
type Part struct {
	Name string `json:"name"`
	Seq  int    `json:"seq"`
	Size int64  `json:"size"`
	// XXH64 is the hex-encoded xxhash64 of the part.
	XXH64 string `json:"xxh64"`
}

// PathFor returns the manifest path for an archive.
func PathFor(archivePath string) string {
	return archivePath + Suffix
}

// New builds a manifest for parts split from art.
func New(stagingID string, art archive.Artifact, maxPartBytes int64, parts []chunker.Part, createdAt time.Time) Manifest {
	m := Manifest{
		Version:      FormatVersion,
		StagingID:    stagingID,
		CreatedAt:    createdAt.UTC(),
		Archive:      filepath.Base(art.Path),
		Entry:        art.EntryName,
		ArchiveSize:  art.Size,
		MaxPartBytes: maxPartBytes,
		Parts:        make([]Part, 0, len(parts)),
	}
	for _, p := range parts {
		m.Parts = append(m.Parts, Part{
			Name:  filepath.Base(p.Path),
			Seq:   p.Seq,
			Size:  p.Size,
			XXH64: formatDigest(p.Digest),
		})
	}
	return m
}

func formatDigest(d uint64) string {
	return fmt.Sprintf("%016x", d)
}

// Write stores m at path as indented JSON, atomically.
func Write(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		iox.DiscardErr(func() error { return iox.RemoveIfExists(tmp) })
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		iox.DiscardErr(func() error { return iox.RemoveIfExists(tmp) })
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}

// Read loads a manifest from path.
func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("manifest not found: %s", path)
		}
		return Manifest{}, fmt.Errorf("cannot read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	if m.Version != FormatVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest version %d in %s", m.Version, path)
	}
	for _, p := range m.Parts {
		if err := checkPartName(p.Name); err != nil {
			return Manifest{}, fmt.Errorf("invalid manifest %s: %w", path, err)
		}
	}
	return m, nil
}

// checkPartName rejects part names that would resolve outside the manifest's
// directory.
func checkPartName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("part name %q is not a plain file name", name)
	}
	return nil
}

// Total returns the sum of the part sizes.
func (m Manifest) Total() int64 {
	var n int64
	for _, p := range m.Parts {
		n += p.Size
	}
	return n
}

// ChunkerParts resolves the manifest parts against dir.
func (m Manifest) ChunkerParts(dir string) []chunker.Part {
	out := make([]chunker.Part, 0, len(m.Parts))
	for _, p := range m.Parts {
		d, _ := strconv.ParseUint(p.XXH64, 16, 64)
		out = append(out, chunker.Part{
			Path:   filepath.Join(dir, p.Name),
			Seq:    p.Seq,
			Size:   p.Size,
			Digest: d,
		})
	}
	return out
}

// Verify checks every part in dir against its recorded size and digest.
func (m Manifest) Verify(dir string) error {
	if m.Total() != m.ArchiveSize {
		return fmt.Errorf("%w: parts sum to %d bytes, archive had %d", ErrMismatch, m.Total(), m.ArchiveSize)
	}
	for _, p := range m.Parts {
		if err := checkPartName(p.Name); err != nil {
			return err
		}
		path := filepath.Join(dir, p.Name)
		size, digest, err := hashFile(path)
		if err != nil {
			return err
		}
		if size != p.Size {
			return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrMismatch, p.Name, size, p.Size)
		}
		if got := formatDigest(digest); got != p.XXH64 {
			return fmt.Errorf("%w: %s has xxh64 %s, expected %s", ErrMismatch, p.Name, got, p.XXH64)
		}
	}
	return nil
}

func hashFile(path string) (int64, uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open part: %w", err)
	}
	defer iox.DiscardClose(f)

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return n, 0, fmt.Errorf("read part %s: %w", path, err)
	}
	return n, h.Sum64(), nil
}
