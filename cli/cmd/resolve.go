package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stager/cli/config"
)

// loadConfig loads the file named by --config, or returns nil when unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return cfg, nil
}

// configVal reads a field from cfg, returning the zero value when cfg is nil.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

// resolveString returns the flag value when set on the command line, then
// the config value when non-empty, then the flag default.
func resolveString(c *cli.Context, name, fromConfig string) string {
	if c.IsSet(name) || fromConfig == "" {
		return c.String(name)
	}
	return fromConfig
}

// resolveBool returns the flag value when set on the command line,
// otherwise fromConfig.
func resolveBool(c *cli.Context, name string, fromConfig bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return fromConfig
}

// resolvePartSize resolves --max-part-size against the config file.
func resolvePartSize(c *cli.Context, cfg *config.Config) (int64, error) {
	if c.IsSet("max-part-size") {
		n, err := config.ParseSize(c.String("max-part-size"))
		if err != nil {
			return 0, cli.Exit(fmt.Sprintf("invalid --max-part-size: %v", err), exitUsage)
		}
		return n, nil
	}
	n, err := cfg.MaxPartBytes()
	if err != nil {
		return 0, cli.Exit(fmt.Sprintf("invalid max_part_size: %v", err), exitUsage)
	}
	return n, nil
}
