package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/cli/render"
	"github.com/pithecene-io/stager/diskguard"
)

// DiskView is the rendered form of a disk check.
type DiskView struct {
	Path        string  `json:"path"`
	Mountpoint  string  `json:"mountpoint"`
	UsedPercent float64 `json:"used_percent"`
	Verdict     string  `json:"verdict"`
	Code        int     `json:"code"`
	Message     string  `json:"message"`
}

// diskChecker is the disk inspection surface used by commands.
type diskChecker interface {
	Check(path string) (diskguard.Status, error)
	CheckWorkingDir() (diskguard.Status, error)
}

// newGuard builds the disk checker for each command invocation.
var newGuard = func() diskChecker { return diskguard.New() }

// DiskCommand returns the disk command.
// It reports the disk status staging would see, without writing anything.
func DiskCommand() *cli.Command {
	return &cli.Command{
		Name:      "disk",
		Usage:     "Report disk usage for the filesystem holding a path (default: working directory)",
		ArgsUsage: "[path]",
		Flags:     append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action:    diskAction,
	}
}

func diskAction(c *cli.Context) error {
	if err := rejectTUI(c, "disk"); err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c, configVal(cfg, func(c *config.Config) string { return c.Output.Format }))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	guard := newGuard()
	var status diskguard.Status
	if c.NArg() > 0 {
		status, _ = guard.Check(c.Args().First())
	} else {
		status, _ = guard.CheckWorkingDir()
	}

	if err := r.Render(newDiskView(status)); err != nil {
		return err
	}

	switch status.Verdict {
	case diskguard.VerdictLowSpace:
		return cli.Exit("", exitLowSpace)
	case diskguard.VerdictUnknown:
		return cli.Exit("", exitInspectionFailed)
	default:
		return nil
	}
}

func newDiskView(s diskguard.Status) DiskView {
	return DiskView{
		Path:        s.Path,
		Mountpoint:  s.Mountpoint,
		UsedPercent: s.UsedPercent,
		Verdict:     s.Verdict.String(),
		Code:        s.Code(),
		Message:     s.Message(),
	}
}
