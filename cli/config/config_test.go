package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `max_part_size: 4MiB
keep_archive: false
strict_disk: true

log:
  dir: /var/log/stager
  base: nightly
  backups: 30
  hidden: true
  level: debug

output:
  format: json
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "max_part_size", cfg.MaxPartSize, "4MiB")
	n, err := cfg.MaxPartBytes()
	if err != nil {
		t.Fatalf("MaxPartBytes: %v", err)
	}
	if n != 4<<20 {
		t.Errorf("expected max part bytes %d, got %d", 4<<20, n)
	}
	if cfg.KeepArchiveOr(true) {
		t.Error("expected keep_archive=false to override the default")
	}
	if !cfg.StrictDisk {
		t.Error("expected strict_disk=true")
	}

	assertEqual(t, "log.dir", cfg.Log.Dir, "/var/log/stager")
	assertEqual(t, "log.base", cfg.Log.Base, "nightly")
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
	if cfg.LogBackups() != 30 {
		t.Errorf("expected log.backups=30, got %d", cfg.LogBackups())
	}
	if !cfg.Log.Hidden {
		t.Error("expected log.hidden=true")
	}

	assertEqual(t, "output.format", cfg.Output.Format, "json")
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	n, err := cfg.MaxPartBytes()
	if err != nil {
		t.Fatalf("MaxPartBytes: %v", err)
	}
	if n != DefaultMaxPartBytes {
		t.Errorf("expected default max part bytes %d, got %d", DefaultMaxPartBytes, n)
	}
	if !cfg.KeepArchiveOr(true) {
		t.Error("expected unset keep_archive to use the default")
	}
	if cfg.LogBackups() != DefaultLogBackups {
		t.Errorf("expected default log backups %d, got %d", DefaultLogBackups, cfg.LogBackups())
	}
}

func TestNilConfigDefaults(t *testing.T) {
	var cfg *Config
	n, err := cfg.MaxPartBytes()
	if err != nil || n != DefaultMaxPartBytes {
		t.Errorf("nil config: got %d, %v", n, err)
	}
	if cfg.KeepArchiveOr(false) {
		t.Error("nil config should return the given default")
	}
	if cfg.LogBackups() != DefaultLogBackups {
		t.Errorf("nil config: got %d backups", cfg.LogBackups())
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/stager.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_PART_SIZE", "2MB")

	path := writeTemp(t, `max_part_size: ${TEST_PART_SIZE}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	n, _ := cfg.MaxPartBytes()
	if n != 2_000_000 {
		t.Errorf("expected 2000000, got %d", n)
	}
}

func TestLoad_EnvDefaultExpansion(t *testing.T) {
	path := writeTemp(t, `max_part_size: ${UNSET_STAGER_PART_12345:-512KiB}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	n, _ := cfg.MaxPartBytes()
	if n != 512*1024 {
		t.Errorf("expected %d, got %d", 512*1024, n)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `max_part_size: 1MiB
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_UnknownNestedKeyRejected(t *testing.T) {
	yaml := `log:
  dir: ./logs
  unknown_field: bad
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown nested key, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_field") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_WhitespaceOnlyConfig(t *testing.T) {
	path := writeTemp(t, "   \n  \n  \n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed for whitespace-only config: %v", err)
	}
	if cfg.MaxPartSize != "" {
		t.Errorf("expected empty max_part_size, got %q", cfg.MaxPartSize)
	}
}

func TestLoad_CommentsOnlyConfig(t *testing.T) {
	path := writeTemp(t, "# This is a comment\n# Another comment\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load failed for comments-only config: %v", err)
	}
}

func TestLoad_KeepArchiveFalseDistinctFromUnset(t *testing.T) {
	path := writeTemp(t, "keep_archive: false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.KeepArchive == nil {
		t.Fatal("expected keep_archive to be non-nil")
	}
	if *cfg.KeepArchive {
		t.Error("expected keep_archive=false")
	}
}

func TestLoad_BackupsZeroDistinctFromNil(t *testing.T) {
	path := writeTemp(t, "log:\n  backups: 0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogBackups() != 0 {
		t.Errorf("expected backups=0, got %d", cfg.LogBackups())
	}
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad size", "max_part_size: lots\n", "invalid size"},
		{"zero size", "max_part_size: 0\n", "invalid size"},
		{"negative backups", "log:\n  backups: -1\n", "log.backups"},
		{"bad format", "output:\n  format: xml\n", "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1000000", 1_000_000},
		{"1MB", 1_000_000},
		{"1MiB", 1 << 20},
		{"1 MiB", 1 << 20},
		{" 64KiB ", 64 << 10},
		{"2GiB", 2 << 30},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil {
			t.Errorf("ParseSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "abc", "0", "-5"} {
		if _, err := ParseSize(bad); err == nil {
			t.Errorf("ParseSize(%q): expected error", bad)
		}
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stager.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
