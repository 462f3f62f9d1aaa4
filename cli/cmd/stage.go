package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/cli/render"
	"github.com/pithecene-io/stager/cli/tui"
	"github.com/pithecene-io/stager/metrics"
	"github.com/pithecene-io/stager/progress"
	"github.com/pithecene-io/stager/stage"
	"github.com/pithecene-io/stager/types"
)

// StageView is the table form of a staging result.
type StageView struct {
	StagingID    string `json:"staging_id"`
	Outcome      string `json:"outcome"`
	Source       string `json:"source"`
	SourceSize   int64  `json:"source_size"`
	Disk         string `json:"disk"`
	Archive      string `json:"archive"`
	ArchiveSize  int64  `json:"archive_size"`
	ArchiveKept  bool   `json:"archive_kept"`
	Parts        int    `json:"parts"`
	MaxPartBytes int64  `json:"max_part_bytes"`
	Manifest     string `json:"manifest"`
	Progress     string `json:"progress"`
	Duration     string `json:"duration"`
}

// PartView is one row of a part listing.
type PartView struct {
	Seq   int    `json:"seq"`
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	XXH64 string `json:"xxh64"`
}

// StageCommand returns the stage command.
// It is the only command that creates archives and parts from a source.
func StageCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		MaxPartSizeFlag,
		&cli.BoolFlag{
			Name:  "keep-archive",
			Usage: "Keep the intermediate archive after splitting",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "strict-disk",
			Usage: "Fail when disk usage cannot be determined",
		},
		&cli.Int64Flag{
			Name:  "total-bytes",
			Usage: "Expected source size; a mismatch is logged",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Print a progress line to stderr (default when stderr is a terminal)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress result output",
		},
	}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, logFlags()...)

	return &cli.Command{
		Name:      "stage",
		Usage:     "Check disk space, compress a file, and split the archive into parts",
		ArgsUsage: "<file>",
		Flags:     flags,
		Action:    stageAction,
	}
}

func stageAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one source file required", exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	maxPart, err := resolvePartSize(c, cfg)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c, configVal(cfg, func(c *config.Config) string { return c.Output.Format }))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	useTUI := c.Bool("tui")
	if useTUI && r.NoColor() {
		tui.DisableColor()
	}

	logger, closeLog, err := openLogger(c, cfg, useTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	req := types.StagingRequest{
		SourcePath:   c.Args().First(),
		MaxPartBytes: maxPart,
		TotalBytes:   c.Int64("total-bytes"),
		KeepArchive:  resolveBool(c, "keep-archive", cfg.KeepArchiveOr(true)),
	}
	collector := metrics.NewCollector()
	pcfg := stage.Config{
		Logger:     logger,
		Guard:      newGuard(),
		Collector:  collector,
		StrictDisk: resolveBool(c, "strict-disk", configVal(cfg, func(c *config.Config) bool { return c.StrictDisk })),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *stage.Result
	if useTUI {
		res, err = tui.Run(ctx, c.App.ErrWriter, filepath.Base(req.SourcePath), func(ctx context.Context, send func(tea.Msg)) (*stage.Result, error) {
			pcfg.OnPhase = func(p stage.Phase) { send(tui.PhaseMsg(p)) }
			pcfg.ProgressOptions = []progress.Option{
				progress.WithObserver(func(s progress.Status) { send(tui.StatusMsg(s)) }),
			}
			return stage.New(pcfg).Stage(ctx, req)
		})
	} else {
		showProgress := c.Bool("progress") || (!c.IsSet("progress") && stderrIsTerminal(c))
		if showProgress {
			pcfg.ProgressOptions = []progress.Option{progress.WithWriter(c.App.ErrWriter)}
		}
		res, err = stage.New(pcfg).Stage(ctx, req)
		if showProgress && res != nil && res.Progress.Seen > 0 {
			fmt.Fprintln(c.App.ErrWriter)
		}
	}

	logger.Info("staging metrics", metricsFields(collector.Snapshot()))

	if !c.Bool("quiet") && res != nil && res.Outcome != stage.OutcomeInvalidRequest {
		if rerr := renderStageResult(r, res); rerr != nil {
			return rerr
		}
	}
	return exitErr(err)
}

func stderrIsTerminal(c *cli.Context) bool {
	f, ok := c.App.ErrWriter.(*os.File)
	return ok && render.IsTerminal(f)
}

func renderStageResult(r *render.Renderer, res *stage.Result) error {
	if r.Format() != render.FormatTable {
		return r.Render(res)
	}
	if err := r.Render(newStageView(res)); err != nil {
		return err
	}
	if len(res.Parts) == 0 {
		return nil
	}
	return r.Render(newPartViews(res))
}

func newStageView(res *stage.Result) StageView {
	v := StageView{
		StagingID:    res.StagingID,
		Outcome:      string(res.Outcome),
		Source:       res.Request.SourcePath,
		SourceSize:   res.Archive.SourceSize,
		Disk:         res.Disk.Message(),
		Archive:      res.Archive.Path,
		ArchiveSize:  res.Archive.Size,
		ArchiveKept:  res.Request.KeepArchive && res.Outcome == stage.OutcomeStaged,
		Parts:        len(res.Parts),
		MaxPartBytes: res.Request.MaxPartBytes,
		Manifest:     res.ManifestPath,
		Duration:     res.Duration.Round(time.Millisecond).String(),
	}
	if res.Progress.Label != "" {
		v.Progress = res.Progress.String()
	}
	return v
}

func newPartViews(res *stage.Result) []PartView {
	views := make([]PartView, 0, len(res.Parts))
	for _, p := range res.Parts {
		views = append(views, PartView{
			Seq:   p.Seq,
			Path:  p.Path,
			Size:  p.Size,
			XXH64: formatDigest(p.Digest),
		})
	}
	return views
}

// formatDigest renders an xxhash64 digest the way manifests record it.
func formatDigest(d uint64) string {
	return fmt.Sprintf("%016x", d)
}
