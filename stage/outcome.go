package stage

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/stager/diskguard"
)

// Outcome is the final state of a staging run.
type Outcome string

// Outcomes.
const (
	OutcomeStaged         Outcome = "staged"
	OutcomeInvalidRequest Outcome = "invalid_request"
	OutcomeLowSpace       Outcome = "low_space"
	OutcomeDiskUnknown    Outcome = "disk_unknown"
	OutcomeArchiveFailed  Outcome = "archive_failed"
	OutcomeSplitFailed    Outcome = "split_failed"
	OutcomeManifestFailed Outcome = "manifest_failed"
	OutcomeCancelled      Outcome = "cancelled"
)

// Phase names a pipeline step.
type Phase string

// Phases in execution order.
const (
	PhaseDisk     Phase = "disk"
	PhaseArchive  Phase = "archive"
	PhaseSplit    Phase = "split"
	PhaseManifest Phase = "manifest"
)

// ErrInsufficientDiskSpace is the admission-control veto.
var ErrInsufficientDiskSpace = errors.New("insufficient disk space")

// DiskSpaceError reports a staging run refused because the target
// filesystem is above the low-space threshold.
type DiskSpaceError struct {
	Status diskguard.Status
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("%v on %s: %s", ErrInsufficientDiskSpace, e.Status.Mountpoint, e.Status.Message())
}

// Is reports whether target is ErrInsufficientDiskSpace.
func (e *DiskSpaceError) Is(target error) bool {
	return target == ErrInsufficientDiskSpace
}
