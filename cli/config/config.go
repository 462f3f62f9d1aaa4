package config

import (
	"fmt"
	"strings"

	"github.com/alecthomas/units"
	"github.com/dustin/go-humanize"
)

// Defaults applied when neither the config file nor a flag sets a value.
const (
	DefaultMaxPartBytes = int64(units.MiB)
	DefaultLogBackups   = 365
	DefaultLogBase      = "stager"
	DefaultFormat       = "table"
)

// Formats accepted by output.format and --format.
var Formats = []string{"table", "json", "yaml"}

// Config represents a stager.yaml configuration file.
// All values are optional and act as defaults for stager flags.
// CLI flags always override config values.
type Config struct {
	// MaxPartSize is a byte string such as "1MiB", "1MB" or "1000000".
	MaxPartSize string       `yaml:"max_part_size"`
	KeepArchive *bool        `yaml:"keep_archive"`
	StrictDisk  bool         `yaml:"strict_disk"`
	Log         LogConfig    `yaml:"log"`
	Output      OutputConfig `yaml:"output"`
}

// LogConfig holds log sink defaults from the config file.
type LogConfig struct {
	// Dir enables the daily rotating log file when set.
	Dir     string `yaml:"dir"`
	Base    string `yaml:"base"`
	Backups *int   `yaml:"backups,omitempty"`
	// Hidden marks a newly created log directory hidden.
	Hidden bool   `yaml:"hidden"`
	Level  string `yaml:"level"`
}

// OutputConfig holds result rendering defaults from the config file.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// MaxPartBytes returns the configured part size, or DefaultMaxPartBytes
// when unset.
func (c *Config) MaxPartBytes() (int64, error) {
	if c == nil || strings.TrimSpace(c.MaxPartSize) == "" {
		return DefaultMaxPartBytes, nil
	}
	return ParseSize(c.MaxPartSize)
}

// KeepArchiveOr returns keep_archive, or def when unset.
func (c *Config) KeepArchiveOr(def bool) bool {
	if c == nil || c.KeepArchive == nil {
		return def
	}
	return *c.KeepArchive
}

// LogBackups returns log.backups, or DefaultLogBackups when unset.
func (c *Config) LogBackups() int {
	if c == nil || c.Log.Backups == nil {
		return DefaultLogBackups
	}
	return *c.Log.Backups
}

// Validate checks field values that yaml decoding cannot.
func (c *Config) Validate() error {
	if _, err := c.MaxPartBytes(); err != nil {
		return err
	}
	if c.Log.Backups != nil && *c.Log.Backups < 0 {
		return fmt.Errorf("log.backups must not be negative, got %d", *c.Log.Backups)
	}
	if c.Output.Format != "" && !ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output.format %q (valid: %s)", c.Output.Format, strings.Join(Formats, ", "))
	}
	return nil
}

// ParseSize parses a human byte string. Both SI ("1MB") and IEC ("1MiB")
// suffixes are accepted. The result must be positive.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n == 0 || n > uint64(1<<62) {
		return 0, fmt.Errorf("invalid size %q: must be between 1 byte and 4 EiB", s)
	}
	return int64(n), nil
}

// ValidFormat reports whether f is a known output format.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}
