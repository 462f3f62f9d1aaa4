// Package metrics provides in-process staging counters.
//
// The Collector accumulates counters across the staging runs of one process.
// It is a leaf package with no internal dependencies; the pipeline records
// into it and the CLI renders its Snapshot.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Staging lifecycle
	StagingsStarted   int64 `json:"stagings_started"`
	StagingsCompleted int64 `json:"stagings_completed"`
	StagingsFailed    int64 `json:"stagings_failed"`

	// Admission control
	DiskVetoes  int64 `json:"disk_vetoes"`
	DiskUnknown int64 `json:"disk_unknown"`

	// Bytes and parts
	SourceBytes   int64 `json:"source_bytes"`
	ArchiveBytes  int64 `json:"archive_bytes"`
	PartsWritten  int64 `json:"parts_written"`
	PartsRemoved  int64 `json:"parts_removed"`
	CleanupErrors int64 `json:"cleanup_errors"`

	// Failures by stage ("archive", "split", "manifest")
	FailuresByStage map[string]int64 `json:"failures_by_stage"`
}

// Collector accumulates staging metrics.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	stagingsStarted   int64
	stagingsCompleted int64
	stagingsFailed    int64

	diskVetoes  int64
	diskUnknown int64

	sourceBytes   int64
	archiveBytes  int64
	partsWritten  int64
	partsRemoved  int64
	cleanupErrors int64

	failuresByStage map[string]int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{failuresByStage: make(map[string]int64)}
}

// --- Staging lifecycle ---

// IncStagingStarted records a staging start.
func (c *Collector) IncStagingStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagingsStarted++
	c.mu.Unlock()
}

// IncStagingCompleted records a successful staging run.
func (c *Collector) IncStagingCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagingsCompleted++
	c.mu.Unlock()
}

// IncStagingFailed records a failed staging run and the stage that failed.
func (c *Collector) IncStagingFailed(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagingsFailed++
	c.failuresByStage[stage]++
	c.mu.Unlock()
}

// --- Admission control ---

// IncDiskVeto records a staging run refused for low disk space.
func (c *Collector) IncDiskVeto() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.diskVetoes++
	c.mu.Unlock()
}

// IncDiskUnknown records a disk check that could not determine status.
func (c *Collector) IncDiskUnknown() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.diskUnknown++
	c.mu.Unlock()
}

// --- Bytes and parts ---

// AddArchived records an archive of sourceBytes compressed to archiveBytes.
func (c *Collector) AddArchived(sourceBytes, archiveBytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sourceBytes += sourceBytes
	c.archiveBytes += archiveBytes
	c.mu.Unlock()
}

// IncPartWritten records one part file written.
func (c *Collector) IncPartWritten() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsWritten++
	c.mu.Unlock()
}

// AddPartsRemoved records n part files deleted during cleanup.
func (c *Collector) AddPartsRemoved(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsRemoved += int64(n)
	c.mu.Unlock()
}

// IncCleanupError records a cleanup step that failed.
func (c *Collector) IncCleanupError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cleanupErrors++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byStage := make(map[string]int64, len(c.failuresByStage))
	for k, v := range c.failuresByStage {
		byStage[k] = v
	}

	return Snapshot{
		StagingsStarted:   c.stagingsStarted,
		StagingsCompleted: c.stagingsCompleted,
		StagingsFailed:    c.stagingsFailed,

		DiskVetoes:  c.diskVetoes,
		DiskUnknown: c.diskUnknown,

		SourceBytes:   c.sourceBytes,
		ArchiveBytes:  c.archiveBytes,
		PartsWritten:  c.partsWritten,
		PartsRemoved:  c.partsRemoved,
		CleanupErrors: c.cleanupErrors,

		FailuresByStage: byStage,
	}
}
