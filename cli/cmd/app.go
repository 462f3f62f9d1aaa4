package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/types"
)

// NewApp builds the stager CLI application.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:    "stager",
		Usage:   "Stage files for transfer: disk check, compression, and splitting",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Commands: []*cli.Command{
			StageCommand(),
			DiskCommand(),
			SplitCommand(),
			JoinCommand(),
			CleanCommand(),
			VersionCommand(commit),
		},
	}
}
