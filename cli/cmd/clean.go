package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/cli/render"
	"github.com/pithecene-io/stager/stage"
)

// CleanView is the rendered form of a cleanup.
type CleanView struct {
	Source          string `json:"source"`
	ArchiveRemoved  bool   `json:"archive_removed"`
	ManifestRemoved bool   `json:"manifest_removed"`
	PartsRemoved    int    `json:"parts_removed"`
}

// CleanCommand returns the clean command.
// It deletes the archive, manifest, and parts staged from a source. The
// source itself is never touched.
func CleanCommand() *cli.Command {
	return &cli.Command{
		Name:      "clean",
		Usage:     "Remove the archive, manifest, and parts staged from a file",
		ArgsUsage: "<file>",
		Flags:     append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...),
		Action:    cleanAction,
	}
}

func cleanAction(c *cli.Context) error {
	if err := rejectTUI(c, "clean"); err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("exactly one source file required", exitUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c, configVal(cfg, func(c *config.Config) string { return c.Output.Format }))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	source := c.Args().First()
	res, err := stage.Clean(source)
	if rerr := r.Render(CleanView{
		Source:          source,
		ArchiveRemoved:  res.Archive,
		ManifestRemoved: res.Manifest,
		PartsRemoved:    res.Parts,
	}); rerr != nil {
		return rerr
	}
	return exitErr(err)
}
