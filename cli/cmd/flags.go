// Package cmd provides CLI commands for the stager binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:    "no-color",
		Usage:   "Disable colored output",
		EnvVars: []string{"NO_COLOR"},
	}

	// ConfigFlag points at a stager.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to stager.yaml",
		EnvVars: []string{"STAGER_CONFIG"},
	}

	// MaxPartSizeFlag bounds part file sizes.
	MaxPartSizeFlag = &cli.StringFlag{
		Name:    "max-part-size",
		Aliases: []string{"s"},
		Usage:   "Largest part file, e.g. 1MiB, 1MB, 1000000 (default 1MiB)",
	}

	// TUIFlag enables the Bubble Tea progress view.
	// Only valid for stage.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view (stage only)",
	}
)

// ReadOnlyFlags returns the shared flags for commands that only render output.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// logFlags configure the log sink for commands that modify files.
func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "log-dir",
			Usage: "Write JSON logs to a daily rotating file in this directory",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn, error",
			Value: "info",
		},
		&cli.BoolFlag{
			Name:  "log-hidden",
			Usage: "Mark a newly created log directory hidden",
		},
	}
}

// rejectTUI returns a usage error when --tui is set on a command without a progress view.
func rejectTUI(c *cli.Context, command string) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+command+" command", exitUsage)
	}
	return nil
}
