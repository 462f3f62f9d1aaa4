package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/chunker"
	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/cli/render"
	"github.com/pithecene-io/stager/log"
)

// SplitCommand returns the split command.
// It splits any file into numbered parts without compressing it first.
func SplitCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag, MaxPartSizeFlag}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, logFlags()...)

	return &cli.Command{
		Name:      "split",
		Usage:     "Split a file into numbered parts (<file>.001, <file>.002, ...)",
		ArgsUsage: "<file>",
		Flags:     flags,
		Action:    splitAction,
	}
}

func splitAction(c *cli.Context) error {
	if err := rejectTUI(c, "split"); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("exactly one file required", exitUsage)
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
	logger, closeLog, err := openLogger(c, cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	source := c.Args().First()
	logger = logger.With(log.Meta{Source: source})

	parts, err := chunker.NewSplitter(logger).Split(source, maxPart)
	if err != nil {
		if rerr := chunker.Remove(parts); rerr != nil {
			logger.Error("part cleanup failed", map[string]any{"error": rerr.Error()})
		}
		return exitErr(err)
	}

	views := make([]PartView, 0, len(parts))
	for _, p := range parts {
		views = append(views, PartView{Seq: p.Seq, Path: p.Path, Size: p.Size, XXH64: formatDigest(p.Digest)})
	}
	return r.Render(views)
}
