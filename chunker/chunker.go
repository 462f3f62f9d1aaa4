// Package chunker splits a file into numbered, size-bounded part files and
// joins them back.
//
// Parts of /path/name are /path/name.001, /path/name.002, and so on. Each part
// holds at most the configured number of bytes, every part but the last is
// full, and concatenating the parts in sequence order reproduces the source
// exactly. A zero-length source produces no parts at all.
package chunker

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/pithecene-io/stager/iox"
	"github.com/pithecene-io/stager/log"
)

// readBufferSize bounds the reader buffer independently of the part size.
const readBufferSize = 1 << 20

var (
	// ErrChunkIO classifies every read or write failure during split or join.
	ErrChunkIO = errors.New("chunk i/o failed")

	// ErrPartSize is returned when the maximum part size is not positive.
	ErrPartSize = errors.New("max part size must be greater than 0")

	// ErrSequence is returned when parts handed to Join are not numbered 1..n.
	ErrSequence = errors.New("parts are not a contiguous sequence starting at 1")
)

// IOError wraps a chunking failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("chunk %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// Is matches ErrChunkIO, and iox.ErrDiskFull when the device ran out of space.
func (e *IOError) Is(target error) bool {
	switch target {
	case ErrChunkIO:
		return true
	case iox.ErrDiskFull:
		return iox.IsDiskFull(e.Err)
	}
	return false
}

// Part is one fragment of a split file.
type Part struct {
	Path string `json:"path"`
	// Seq is the 1-based position of the part.
	Seq  int   `json:"seq"`
	Size int64 `json:"size"`
	// Digest is the xxhash64 of the part content.
	Digest uint64 `json:"digest"`
}

// PartPath returns the path of part seq of source. The sequence number is
// zero-padded to three digits and grows wider past 999.
func PartPath(source string, seq int) string {
	return fmt.Sprintf("%s.%03d", source, seq)
}

// TotalSize sums the sizes of parts.
func TotalSize(parts []Part) int64 {
	var n int64
	for _, p := range parts {
		n += p.Size
	}
	return n
}

// Splitter writes part files.
type Splitter struct {
	logger *log.Logger
	onPart func(Part)
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithPartHook calls fn after each part is completely written and closed.
func WithPartHook(fn func(Part)) Option {
	return func(s *Splitter) { s.onPart = fn }
}

// NewSplitter creates a Splitter. A nil logger discards output.
func NewSplitter(logger *log.Logger, opts ...Option) *Splitter {
	s := &Splitter{logger: log.OrNop(logger)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split reads source sequentially and writes parts of at most maxPartBytes.
//
// A zero-length source returns an empty slice and creates no files. On
// error, Split still returns every part it created, including one that may
// be incomplete, so the caller can delete them; none of them is valid output.
func (s *Splitter) Split(source string, maxPartBytes int64) ([]Part, error) {
	if maxPartBytes <= 0 {
		return nil, ErrPartSize
	}

	src, err := os.Open(source)
	if err != nil {
		return nil, &IOError{Op: "open", Path: source, Err: err}
	}
	defer iox.DiscardClose(src)

	br := bufio.NewReaderSize(src, int(min(maxPartBytes, readBufferSize)))
	parts := []Part{}

	for seq := 1; ; seq++ {
		// Stop at the first empty read; no empty trailing part is ever created.
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return parts, &IOError{Op: "read", Path: source, Err: err}
		}

		part, err := writePart(br, PartPath(source, seq), seq, maxPartBytes)
		if part.Path != "" {
			parts = append(parts, part)
		}
		if err != nil {
			return parts, err
		}

		s.logger.Debug("part written", map[string]any{
			"path":  part.Path,
			"seq":   part.Seq,
			"bytes": part.Size,
		})
		if s.onPart != nil {
			s.onPart(part)
		}
	}

	s.logger.Info("file split", map[string]any{
		"path":  source,
		"parts": len(parts),
		"bytes": TotalSize(parts),
	})
	return parts, nil
}

// writePart copies up to limit bytes from r into a new file at path. The
// returned Part has a non-empty Path whenever the file was created.
func writePart(r io.Reader, path string, seq int, limit int64) (Part, error) {
	f, err := os.Create(path)
	if err != nil {
		return Part{}, &IOError{Op: "create", Path: path, Err: err}
	}
	part := Part{Path: path, Seq: seq}

	h := xxhash.New()
	n, err := io.CopyN(io.MultiWriter(f, h), r, limit)
	part.Size = n
	if err != nil && !errors.Is(err, io.EOF) {
		iox.DiscardClose(f)
		return part, &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return part, &IOError{Op: "close", Path: path, Err: err}
	}
	part.Digest = h.Sum64()
	return part, nil
}

// Split splits source with a default Splitter.
func Split(source string, maxPartBytes int64) ([]Part, error) {
	return NewSplitter(nil).Split(source, maxPartBytes)
}

// Discover returns the parts of source present on disk, starting at
// sequence 1 and stopping at the first missing number. Digests are not
// computed.
func Discover(source string) ([]Part, error) {
	parts := []Part{}
	for seq := 1; ; seq++ {
		path := PartPath(source, seq)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return parts, nil
		}
		if err != nil {
			return parts, &IOError{Op: "stat", Path: path, Err: err}
		}
		if !info.Mode().IsRegular() {
			return parts, &IOError{Op: "stat", Path: path, Err: errors.New("not a regular file")}
		}
		parts = append(parts, Part{Path: path, Seq: seq, Size: info.Size()})
	}
}

// Remove deletes every part file. Parts already gone are skipped; other
// failures are collected and returned together.
func Remove(parts []Part) error {
	var errs []error
	for _, p := range parts {
		if err := iox.RemoveIfExists(p.Path); err != nil {
			errs = append(errs, &IOError{Op: "remove", Path: p.Path, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Join concatenates parts in sequence order into dst and returns the number
// of bytes written. Parts must be numbered 1..n in order. dst is written under
// a temporary name and renamed into place on success.
func Join(parts []Part, dst string) (int64, error) {
	for i, p := range parts {
		if p.Seq != i+1 {
			return 0, fmt.Errorf("%w: position %d has seq %d", ErrSequence, i+1, p.Seq)
		}
	}

	tmpPath := dst + ".joining"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, &IOError{Op: "create", Path: tmpPath, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			iox.DiscardClose(out)
			iox.DiscardErr(func() error { return iox.RemoveIfExists(tmpPath) })
		}
	}()

	var total int64
	for _, p := range parts {
		n, err := appendFile(out, p.Path)
		total += n
		if err != nil {
			return total, err
		}
	}

	if err := out.Close(); err != nil {
		return total, &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return total, &IOError{Op: "rename", Path: dst, Err: err}
	}
	committed = true
	return total, nil
}

func appendFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &IOError{Op: "open", Path: path, Err: err}
	}
	defer iox.DiscardClose(f)

	n, err := io.Copy(w, f)
	if err != nil {
		return n, &IOError{Op: "join", Path: path, Err: err}
	}
	return n, nil
}
