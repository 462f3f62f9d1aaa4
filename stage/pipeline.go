// Package stage runs the staging pipeline: admission control on disk space,
// compression into a single-entry archive, splitting into parts, and
// progress accounting for the bytes written.
//
// Stages run sequentially. The progress tracker is the only object shared
// with other goroutines; observers receive it through Config.OnTracker.
// Any stage failure aborts the rest of the run, and part files from a failed
// split are deleted before the error is returned.
package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/stager/archive"
	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/diskguard"
	"github.com/pithecene-io/stager/iox"
	"github.com/pithecene-io/stager/log"
	"github.com/pithecene-io/stager/manifest"
	"github.com/pithecene-io/stager/metrics"
	"github.com/pithecene-io/stager/progress"
	"github.com/pithecene-io/stager/types"
)

// DiskChecker reports disk status for the filesystem holding a path.
// *diskguard.Guard implements it.
type DiskChecker interface {
	Check(path string) (diskguard.Status, error)
}

// Compressor produces the archive for a source file.
// *archive.Archiver implements it.
type Compressor interface {
	Compress(source string) (archive.Artifact, error)
}

// Config configures a Pipeline. Every field is optional.
type Config struct {
	// Logger receives structured pipeline logs. Nil discards them.
	Logger *log.Logger
	// Guard performs admission control. Nil uses diskguard.New().
	Guard DiskChecker
	// Compressor builds the archive. Nil uses archive.New(Logger).
	Compressor Compressor
	// Collector records metrics. Nil records nothing.
	Collector *metrics.Collector
	// StrictDisk aborts the run when the disk status cannot be determined.
	// Otherwise an unknown status is logged and staging proceeds.
	StrictDisk bool
	// ProgressOptions are applied to each run's tracker.
	ProgressOptions []progress.Option
	// OnTracker is called with each run's tracker before splitting starts,
	// so another goroutine can poll or render it.
	OnTracker func(*progress.Tracker)
	// OnPhase is called as each step starts.
	OnPhase func(Phase)
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Result describes a staging run. On failure the fields filled in up to the
// failing stage are kept for diagnostics.
type Result struct {
	StagingID    string               `json:"staging_id"`
	Request      types.StagingRequest `json:"request"`
	Outcome      Outcome              `json:"outcome"`
	Disk         diskguard.Status     `json:"disk"`
	Archive      archive.Artifact     `json:"archive"`
	Parts        []chunker.Part       `json:"parts"`
	ManifestPath string               `json:"manifest_path,omitempty"`
	Progress     progress.Status      `json:"progress"`
	Duration     time.Duration        `json:"duration"`
}

// Pipeline stages files.
type Pipeline struct {
	logger     *log.Logger
	guard      DiskChecker
	compressor Compressor
	collector  *metrics.Collector
	strictDisk bool
	progOpts   []progress.Option
	onTracker  func(*progress.Tracker)
	onPhase    func(Phase)
	now        func() time.Time
}

// New creates a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		logger:     log.OrNop(cfg.Logger),
		guard:      cfg.Guard,
		compressor: cfg.Compressor,
		collector:  cfg.Collector,
		strictDisk: cfg.StrictDisk,
		progOpts:   cfg.ProgressOptions,
		onTracker:  cfg.OnTracker,
		onPhase:    cfg.OnPhase,
		now:        cfg.Now,
	}
	if p.guard == nil {
		p.guard = diskguard.New()
	}
	if p.compressor == nil {
		p.compressor = archive.New(p.logger)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// run carries the state of one Stage call.
type run struct {
	*Pipeline
	logger *log.Logger
	result *Result
	start  time.Time
}

// Stage runs one staging operation for req.
//
// ctx is checked between stages only; a stage in progress runs to
// completion. To stop reporting mid-split, close the tracker handed to
// OnTracker.
func (p *Pipeline) Stage(ctx context.Context, req types.StagingRequest) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		Pipeline: p,
		logger:   p.logger.With(log.Meta{StagingID: id, Source: req.SourcePath}),
		result:   &Result{StagingID: id, Request: req, Parts: []chunker.Part{}},
		start:    p.now(),
	}

	if err := req.Validate(); err != nil {
		return r.fail(OutcomeInvalidRequest, "request", err)
	}

	p.collector.IncStagingStarted()
	r.logger.Info("staging started", map[string]any{
		"max_part_bytes": req.MaxPartBytes,
		"keep_archive":   req.KeepArchive,
	})

	r.enter(PhaseDisk)
	if err := r.admit(); err != nil {
		return r.result, err
	}
	if err := ctx.Err(); err != nil {
		return r.fail(OutcomeCancelled, "cancelled", err)
	}

	r.checkDeclaredSize()

	r.enter(PhaseArchive)
	art, err := p.compressor.Compress(req.SourcePath)
	if err != nil {
		return r.fail(OutcomeArchiveFailed, string(PhaseArchive), err)
	}
	r.result.Archive = art
	p.collector.AddArchived(art.SourceSize, art.Size)

	if err := ctx.Err(); err != nil {
		r.discardArchive()
		return r.fail(OutcomeCancelled, "cancelled", err)
	}

	r.enter(PhaseSplit)
	if err := r.split(); err != nil {
		return r.result, err
	}
	if err := ctx.Err(); err != nil {
		r.abandon()
		return r.fail(OutcomeCancelled, "cancelled", err)
	}

	r.enter(PhaseManifest)
	if err := r.writeManifest(); err != nil {
		return r.result, err
	}

	if !req.KeepArchive {
		r.discardArchive()
	}

	r.result.Outcome = OutcomeStaged
	r.result.Duration = p.now().Sub(r.start)
	p.collector.IncStagingCompleted()
	r.logger.Info("staging completed", map[string]any{
		"archive":     art.Path,
		"parts":       len(r.result.Parts),
		"bytes":       art.Size,
		"duration_ms": r.result.Duration.Milliseconds(),
	})
	return r.result, nil
}

func (r *run) enter(phase Phase) {
	if r.onPhase != nil {
		r.onPhase(phase)
	}
}

// admit consults the disk guard on the directory that will receive the archive and parts.
func (r *run) admit() error {
	dir := filepath.Dir(r.result.Request.SourcePath)
	status, err := r.guard.Check(dir)
	r.result.Disk = status

	if err != nil {
		r.collector.IncDiskUnknown()
		if r.strictDisk {
			_, ferr := r.fail(OutcomeDiskUnknown, string(PhaseDisk), err)
			return ferr
		}
		r.logger.Warn("disk status unknown, continuing", map[string]any{"error": err.Error()})
		return nil
	}

	if status.Verdict == diskguard.VerdictLowSpace {
		r.collector.IncDiskVeto()
		_, ferr := r.fail(OutcomeLowSpace, string(PhaseDisk), &DiskSpaceError{Status: status})
		return ferr
	}

	r.logger.Debug("disk admitted", map[string]any{
		"mountpoint":   status.Mountpoint,
		"used_percent": status.UsedPercent,
	})
	return nil
}

// checkDeclaredSize logs when the caller's expected size disagrees with the file.
func (r *run) checkDeclaredSize() {
	declared := r.result.Request.TotalBytes
	if declared == 0 {
		return
	}
	info, err := os.Stat(r.result.Request.SourcePath)
	if err != nil || info.Size() == declared {
		return
	}
	r.logger.Warn("source size differs from declared total", map[string]any{
		"declared": declared,
		"actual":   info.Size(),
	})
}

func (r *run) split() error {
	art := r.result.Archive
	tracker := progress.New(filepath.Base(art.Path), art.Size, r.progOpts...)
	defer iox.DiscardClose(tracker)
	if r.onTracker != nil {
		r.onTracker(tracker)
	}

	splitter := chunker.NewSplitter(r.logger, chunker.WithPartHook(func(part chunker.Part) {
		r.collector.IncPartWritten()
		if _, err := tracker.Advance(part.Size); err != nil {
			r.logger.Debug("progress update rejected", map[string]any{
				"seq":   part.Seq,
				"error": err.Error(),
			})
		}
	}))

	parts, err := splitter.Split(art.Path, r.result.Request.MaxPartBytes)
	r.result.Progress = tracker.Snapshot()
	if err != nil {
		r.result.Parts = parts
		r.abandon()
		_, ferr := r.fail(OutcomeSplitFailed, string(PhaseSplit), err)
		return ferr
	}

	if got := chunker.TotalSize(parts); got != art.Size {
		r.result.Parts = parts
		r.abandon()
		_, ferr := r.fail(OutcomeSplitFailed, string(PhaseSplit), &chunker.IOError{
			Op:   "split",
			Path: art.Path,
			Err:  fmt.Errorf("parts hold %d bytes, archive has %d", got, art.Size),
		})
		return ferr
	}

	r.result.Parts = parts
	return nil
}

func (r *run) writeManifest() error {
	m := manifest.New(r.result.StagingID, r.result.Archive, r.result.Request.MaxPartBytes, r.result.Parts, r.now())
	path := manifest.PathFor(r.result.Archive.Path)
	if err := manifest.Write(path, m); err != nil {
		r.abandon()
		_, ferr := r.fail(OutcomeManifestFailed, string(PhaseManifest), err)
		return ferr
	}
	r.result.ManifestPath = path
	return nil
}

// abandon removes the parts of an aborted run, and the archive unless the
// request keeps it.
func (r *run) abandon() {
	r.removeParts(r.result.Parts)
	r.result.Parts = []chunker.Part{}
	if !r.result.Request.KeepArchive {
		r.discardArchive()
	}
}

// removeParts deletes part files from an aborted run.
func (r *run) removeParts(parts []chunker.Part) {
	if len(parts) == 0 {
		return
	}
	if err := chunker.Remove(parts); err != nil {
		r.collector.IncCleanupError()
		r.logger.Error("part cleanup failed", map[string]any{"error": err.Error()})
		return
	}
	r.collector.AddPartsRemoved(len(parts))
	r.logger.Info("partial parts removed", map[string]any{"parts": len(parts)})
}

func (r *run) discardArchive() {
	if err := iox.RemoveIfExists(r.result.Archive.Path); err != nil {
		r.collector.IncCleanupError()
		r.logger.Warn("archive removal failed", map[string]any{
			"path":  r.result.Archive.Path,
			"error": err.Error(),
		})
	}
}

func (r *run) fail(outcome Outcome, stage string, err error) (*Result, error) {
	r.result.Outcome = outcome
	r.result.Duration = r.now().Sub(r.start)
	if outcome != OutcomeInvalidRequest {
		r.collector.IncStagingFailed(stage)
	}
	r.logger.Error("staging failed", map[string]any{
		"outcome": string(outcome),
		"stage":   stage,
		"error":   err.Error(),
	})
	return r.result, err
}
