package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
	"github.com/pithecene-io/stager/cli/render"
	"github.com/pithecene-io/stager/manifest"
	"github.com/pithecene-io/stager/stage"
)

// JoinView is the rendered form of a reassembly.
type JoinView struct {
	Manifest     string `json:"manifest"`
	Output       string `json:"output"`
	WrittenBytes int64  `json:"written_bytes"`
}

// JoinCommand returns the join command.
// It verifies parts against their manifest and concatenates them.
func JoinCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Overwrite an existing output file",
		},
	}
	flags = append(flags, ReadOnlyFlags()...)

	return &cli.Command{
		Name:      "join",
		Usage:     "Verify parts listed in a manifest and rebuild the archive",
		ArgsUsage: "<manifest> [output]",
		Flags:     flags,
		Action:    joinAction,
	}
}

func joinAction(c *cli.Context) error {
	if err := rejectTUI(c, "join"); err != nil {
		return err
	}
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("manifest path required", exitUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c, configVal(cfg, func(c *config.Config) string { return c.Output.Format }))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	manifestPath := c.Args().Get(0)
	output := c.Args().Get(1)
	if output == "" {
		if !strings.HasSuffix(manifestPath, manifest.Suffix) {
			return cli.Exit(fmt.Sprintf("output path required when the manifest name does not end in %s", manifest.Suffix), exitUsage)
		}
		output = strings.TrimSuffix(manifestPath, manifest.Suffix)
	}

	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return cli.Exit(fmt.Sprintf("%s already exists (use --force to overwrite)", output), exitUsage)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return exitErr(err)
		}
	}

	n, err := stage.Reassemble(manifestPath, output)
	if err != nil {
		return exitErr(err)
	}
	return r.Render(JoinView{Manifest: manifestPath, Output: output, WrittenBytes: n})
}
