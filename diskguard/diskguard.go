// Package diskguard classifies the filesystem holding a path as having
// enough free space for staging or not.
//
// The check is informational and never cached: every call reads the disk
// again. A failed inspection yields VerdictUnknown together with an
// *InspectionError, which callers must not treat as either ok or low space.
package diskguard

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// LowSpaceThreshold is the used-space percentage above which a filesystem is
// considered low on space.
const LowSpaceThreshold = 85.0

// Verdict is the outcome of a disk check.
type Verdict int

// Verdicts.
const (
	VerdictOK Verdict = iota
	VerdictLowSpace
	VerdictUnknown
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictLowSpace:
		return "low_space"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so verdicts render by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses a verdict name produced by MarshalText.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*v = VerdictOK
	case "low_space":
		*v = VerdictLowSpace
	case "unknown":
		*v = VerdictUnknown
	default:
		return fmt.Errorf("unknown disk verdict %q", text)
	}
	return nil
}

// ErrInspection classifies failures to determine disk status.
var ErrInspection = errors.New("disk inspection failed")

// InspectionError reports why the disk holding Path could not be inspected.
type InspectionError struct {
	Path string
	Err  error
}

func (e *InspectionError) Error() string {
	return fmt.Sprintf("inspect disk for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *InspectionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInspection.
func (e *InspectionError) Is(target error) bool { return target == ErrInspection }

// Usage is the raw capacity of one mounted filesystem, in bytes.
type Usage struct {
	Mountpoint string
	Total      uint64
	// Free counts every free block, including those reserved for root.
	Free uint64
	// Available counts blocks usable by unprivileged processes.
	Available uint64
}

// UsedPercent returns the used share of the space visible to unprivileged
// users: used / (used + available) * 100. Reserved blocks are excluded the
// same way df does.
func (u Usage) UsedPercent() float64 {
	used := u.Total - u.Free
	denom := used + u.Available
	if denom == 0 {
		return 0
	}
	return float64(used) / float64(denom) * 100
}

// Prober reads filesystem usage for the mount that holds a path.
type Prober interface {
	Probe(path string) (Usage, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(path string) (Usage, error)

// Probe calls f.
func (f ProberFunc) Probe(path string) (Usage, error) { return f(path) }

// Status is the result of one disk check.
type Status struct {
	Path        string  `json:"path"`
	Mountpoint  string  `json:"mountpoint,omitempty"`
	UsedPercent float64 `json:"used_percent"`
	Verdict     Verdict `json:"verdict"`
	Err         error   `json:"-"`
}

// Message renders the status the way operators expect to read it.
func (s Status) Message() string {
	switch s.Verdict {
	case VerdictOK:
		return fmt.Sprintf("Disk Space used: % .2f%%", s.UsedPercent)
	case VerdictLowSpace:
		return fmt.Sprintf("Low Disk Space: % .2f used%%", s.UsedPercent)
	default:
		return fmt.Sprintf("Error: %v", s.Err)
	}
}

// Code collapses the verdict to an HTTP-like status: 200 for ok, 400 for
// both low space and unknown. Use Verdict or Message to tell the two 400
// cases apart.
func (s Status) Code() int {
	if s.Verdict == VerdictOK {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// Classify maps a used-space percentage to a verdict.
func Classify(usedPercent float64) Verdict {
	if usedPercent > LowSpaceThreshold {
		return VerdictLowSpace
	}
	return VerdictOK
}

// Guard checks disk space through a Prober.
type Guard struct {
	prober Prober
}

// Option configures a Guard.
type Option func(*Guard)

// WithProber replaces the platform prober.
func WithProber(p Prober) Option {
	return func(g *Guard) { g.prober = p }
}

// New creates a Guard using the platform prober unless overridden.
func New(opts ...Option) *Guard {
	g := &Guard{prober: platformProber{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check inspects the filesystem containing path.
// On failure the returned Status has VerdictUnknown and err is an *InspectionError.
func (g *Guard) Check(path string) (Status, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return g.unknown(path, err)
	}

	usage, err := g.prober.Probe(abs)
	if err != nil {
		return g.unknown(abs, err)
	}

	used := usage.UsedPercent()
	return Status{
		Path:        abs,
		Mountpoint:  usage.Mountpoint,
		UsedPercent: used,
		Verdict:     Classify(used),
	}, nil
}

// CheckWorkingDir inspects the filesystem holding the current working directory.
func (g *Guard) CheckWorkingDir() (Status, error) {
	wd, err := os.Getwd()
	if err != nil {
		return g.unknown(".", err)
	}
	return g.Check(wd)
}

func (g *Guard) unknown(path string, err error) (Status, error) {
	ierr := &InspectionError{Path: path, Err: err}
	return Status{Path: path, Verdict: VerdictUnknown, Err: ierr}, ierr
}

// Check inspects the filesystem containing path with the platform prober.
func Check(path string) (Status, error) {
	return New().Check(path)
}
