// Package archive compresses a single file into a single-entry zip container.
//
// The archive for /path/name is always /path/name.zip and holds one deflated
// entry called "name". The container is written under a temporary name in the
// same directory and renamed into place only once complete, so the final name
// never refers to a partial archive.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/pithecene-io/stager/iox"
	"github.com/pithecene-io/stager/log"
)

// Extension is appended to the source path to name the archive.
const Extension = ".zip"

// ErrWrite classifies every archive failure.
var ErrWrite = errors.New("archive write failed")

// WriteError wraps an archive failure with the operation and path involved.
type WriteError struct {
	// Op is the step that failed (e.g., "open", "compress", "rename").
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error { return e.Err }

// Is matches ErrWrite, and iox.ErrDiskFull when the device ran out of space.
func (e *WriteError) Is(target error) bool {
	switch target {
	case ErrWrite:
		return true
	case iox.ErrDiskFull:
		return iox.IsDiskFull(e.Err)
	}
	return false
}

// Artifact describes a finished archive.
type Artifact struct {
	// Path is the archive location, always source + Extension.
	Path string `json:"path"`
	// EntryName is the name of the single entry inside the archive.
	EntryName string `json:"entry_name"`
	// Size is the archive size in bytes.
	Size int64 `json:"size"`
	// SourceSize is the uncompressed size of the entry.
	SourceSize int64 `json:"source_size"`
	// SourceMIME is the detected content type of the source.
	SourceMIME string `json:"source_mime"`
}

// TargetPath returns the archive path for source.
func TargetPath(source string) string {
	return source + Extension
}

// Archiver writes single-entry zip archives.
type Archiver struct {
	logger *log.Logger
	level  int
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithLevel sets the deflate level (flate.BestSpeed..flate.BestCompression).
func WithLevel(level int) Option {
	return func(a *Archiver) { a.level = level }
}

// New creates an Archiver. A nil logger discards output.
func New(logger *log.Logger, opts ...Option) *Archiver {
	a := &Archiver{logger: log.OrNop(logger), level: flate.DefaultCompression}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const archiveMode = 0o644

// Compress archives source into TargetPath(source), replacing any archive
// already there. The source is never modified.
func (a *Archiver) Compress(source string) (Artifact, error) {
	target := TargetPath(source)
	entry := filepath.Base(source)

	src, err := os.Open(source)
	if err != nil {
		return Artifact{}, &WriteError{Op: "open", Path: source, Err: err}
	}
	defer iox.DiscardClose(src)

	info, err := src.Stat()
	if err != nil {
		return Artifact{}, &WriteError{Op: "stat", Path: source, Err: err}
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, &WriteError{Op: "open", Path: source, Err: errors.New("not a regular file")}
	}

	mime := detectMIME(source)
	a.logger.Info("compressing file", map[string]any{
		"path":   source,
		"target": target,
		"bytes":  info.Size(),
		"mime":   mime,
	})

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+entry+".zip-*.tmp")
	if err != nil {
		return Artifact{}, &WriteError{Op: "create", Path: target, Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			iox.DiscardClose(tmp)
			iox.DiscardErr(func() error { return iox.RemoveIfExists(tmpPath) })
		}
	}()

	if err := a.writeEntry(tmp, src, info); err != nil {
		return Artifact{}, &WriteError{Op: "compress", Path: target, Err: err}
	}
	// CreateTemp makes the file private; the archive is published like the parts.
	if err := tmp.Chmod(archiveMode); err != nil {
		return Artifact{}, &WriteError{Op: "chmod", Path: target, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return Artifact{}, &WriteError{Op: "sync", Path: target, Err: err}
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return Artifact{}, &WriteError{Op: "stat", Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, &WriteError{Op: "close", Path: target, Err: err}
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return Artifact{}, &WriteError{Op: "rename", Path: target, Err: err}
	}
	committed = true

	a.logger.Info("archive created", map[string]any{
		"target": target,
		"bytes":  size,
		"ratio":  ratio(size, info.Size()),
	})

	return Artifact{
		Path:       target,
		EntryName:  entry,
		Size:       size,
		SourceSize: info.Size(),
		SourceMIME: mime,
	}, nil
}

func (a *Archiver) writeEntry(dst io.Writer, src io.Reader, info os.FileInfo) error {
	zw := zip.NewWriter(dst)
	level := a.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = info.Name()
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return zw.Close()
}

// detectMIME sniffs the source content type. Failures yield the generic
// application/octet-stream.
func detectMIME(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return m.String()
}

func ratio(compressed, original int64) float64 {
	if original == 0 {
		return 0
	}
	return float64(compressed) / float64(original)
}

// Compress archives source with default settings and no logging.
func Compress(source string) (Artifact, error) {
	return New(nil).Compress(source)
}
