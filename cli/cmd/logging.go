package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/hidden"
	"github.com/pithecene-io/stager/log"
	"github.com/pithecene-io/stager/metrics"
)

// openLogger builds the logger for a command. With --log-dir (or log.dir)
// entries go to a daily rotating file; otherwise to stderr unless the
// terminal is owned by the progress view. The returned func flushes and
// closes the sinks.
func openLogger(c *cli.Context, cfg *config.Config, terminalBusy bool) (*log.Logger, func(), error) {
	dir := resolveString(c, "log-dir", configVal(cfg, func(c *config.Config) string { return c.Log.Dir }))
	level := resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level }))

	var writers []io.Writer
	var daily *log.DailyFile
	if dir != "" {
		if resolveBool(c, "log-hidden", configVal(cfg, func(c *config.Config) bool { return c.Log.Hidden })) {
			if _, err := hidden.MkdirHidden(hidden.Default(), dir); err != nil {
				if errors.Is(err, hidden.ErrNotDotfile) {
					return nil, nil, cli.Exit(fmt.Sprintf("cannot hide log directory %q: %v", dir, err), exitUsage)
				}
				return nil, nil, fmt.Errorf("create log directory: %w", err)
			}
		}

		base := configVal(cfg, func(c *config.Config) string { return c.Log.Base })
		if base == "" {
			base = config.DefaultLogBase
		}
		f, err := log.OpenDailyFile(dir, base, cfg.LogBackups())
		if err != nil {
			return nil, nil, err
		}
		daily = f
		writers = append(writers, f)
	} else if !terminalBusy {
		writers = append(writers, c.App.ErrWriter)
	}

	if len(writers) == 0 {
		return log.Nop(), func() {}, nil
	}

	logger, err := log.NewLevel(log.Meta{}, level, writers...)
	if err != nil {
		if daily != nil {
			_ = daily.Close()
		}
		return nil, nil, cli.Exit(err.Error(), exitUsage)
	}

	closeFn := func() {
		_ = logger.Sync()
		if daily != nil {
			_ = daily.Close()
		}
	}
	return logger, closeFn, nil
}

// metricsFields flattens a metrics snapshot into log fields.
func metricsFields(s metrics.Snapshot) map[string]any {
	fields := map[string]any{
		"stagings_started":   s.StagingsStarted,
		"stagings_completed": s.StagingsCompleted,
		"stagings_failed":    s.StagingsFailed,
		"disk_vetoes":        s.DiskVetoes,
		"disk_unknown":       s.DiskUnknown,
		"source_bytes":       s.SourceBytes,
		"archive_bytes":      s.ArchiveBytes,
		"parts_written":      s.PartsWritten,
		"parts_removed":      s.PartsRemoved,
		"cleanup_errors":     s.CleanupErrors,
	}
	for stage, n := range s.FailuresByStage {
		fields["failures_"+stage] = n
	}
	return fields
}
